// SPDX-License-Identifier: EPL-2.0

package loudness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// trackLoudness is the persisted row. SQLite integers are signed, so the
// track id is stored as its int64 bit pattern.
type trackLoudness struct {
	TrackID   int64   `gorm:"primaryKey;autoIncrement:false"`
	LUFS      float64 `gorm:"column:lufs;not null"`
	Peak      float64 `gorm:"not null;default:0"`
	Source    string  `gorm:"size:16;not null;default:ebur128"`
	UpdatedAt time.Time
}

func (trackLoudness) TableName() string { return "track_loudness" }

// SQLStore persists corrections in a SQLite database.
type SQLStore struct {
	db *gorm.DB
}

// OpenSQLStore opens (creating if needed) the database at path.
func OpenSQLStore(path string) (*SQLStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open loudness store %s: %w", path, err)
	}

	if err := db.AutoMigrate(&trackLoudness{}); err != nil {
		return nil, fmt.Errorf("migrate loudness store: %w", err)
	}

	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Get(ctx context.Context, trackID uint64) (Entry, bool, error) {
	var row trackLoudness

	err := s.db.WithContext(ctx).First(&row, "track_id = ?", int64(trackID)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("load loudness for track %d: %w", trackID, err)
	}

	return Entry{
		LUFS:      row.LUFS,
		Peak:      row.Peak,
		Source:    row.Source,
		UpdatedAt: row.UpdatedAt,
	}, true, nil
}

func (s *SQLStore) Set(ctx context.Context, trackID uint64, e Entry) error {
	if e.Source == "" {
		e.Source = SourceEBUR128
	}

	row := trackLoudness{
		TrackID:   int64(trackID),
		LUFS:      e.LUFS,
		Peak:      e.Peak,
		Source:    e.Source,
		UpdatedAt: e.UpdatedAt,
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("store loudness for track %d: %w", trackID, err)
	}

	return nil
}

// Close releases the database handle.
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}
