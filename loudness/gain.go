// SPDX-License-Identifier: EPL-2.0

package loudness

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	// DefaultMinGain and DefaultMaxGain bound the published correction.
	DefaultMinGain = 0.25
	DefaultMaxGain = 4.0

	// ReplayGainReference is the loudness ReplayGain 2.0 tags are relative to.
	ReplayGainReference = -18.0
)

// DBToLinear converts a level change in dB to an amplitude factor.
func DBToLinear(db float64) float64 { return math.Pow(10, db/20) }

// GainFor returns the linear gain taking measured to target, clamped to
// [minGain, maxGain].
func GainFor(target, measured, minGain, maxGain float64) float32 {
	return ClampGain(DBToLinear(target-measured), minGain, maxGain)
}

// ClampGain limits a linear gain to [minGain, maxGain].
func ClampGain(g, minGain, maxGain float64) float32 {
	return float32(math.Min(math.Max(g, minGain), maxGain))
}

// ReplayGain holds the track gain and optional peak read from file tags.
type ReplayGain struct {
	GainDB float64
	// Peak is the track's sample peak; zero when the tag was absent.
	Peak float64
}

// ParseReplayGain parses REPLAYGAIN_TRACK_GAIN ("-6.54 dB") and
// REPLAYGAIN_TRACK_PEAK ("0.988553") values. peak may be empty.
func ParseReplayGain(gain, peak string) (ReplayGain, error) {
	g := strings.TrimSpace(gain)
	g = strings.TrimSpace(strings.TrimSuffix(strings.TrimSuffix(g, "dB"), "db"))

	db, err := strconv.ParseFloat(g, 64)
	if err != nil {
		return ReplayGain{}, fmt.Errorf("%w: gain %q", ErrBadReplayGain, gain)
	}

	rg := ReplayGain{GainDB: db}

	if p := strings.TrimSpace(peak); p != "" {
		rg.Peak, err = strconv.ParseFloat(p, 64)
		if err != nil {
			return ReplayGain{}, fmt.Errorf("%w: peak %q", ErrBadReplayGain, peak)
		}
	}

	return rg, nil
}

// Factor returns the gain to apply for targetLUFS. With a known peak the
// factor never lifts the peak above full scale; without one it is capped
// at +6 dB.
func (rg ReplayGain) Factor(targetLUFS float64) float64 {
	adjusted := rg.GainDB + (targetLUFS - ReplayGainReference)
	g := DBToLinear(adjusted)

	if rg.Peak > 0 {
		return math.Min(g, 1/rg.Peak)
	}

	return math.Min(g, DBToLinear(6))
}
