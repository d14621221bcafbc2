// SPDX-License-Identifier: EPL-2.0

package fetch

import "errors"

var (
	ErrStreamClosed = errors.New("stream closed")
	// ErrBadStatus is returned by HTTPFetcher for non-200 responses.
	ErrBadStatus = errors.New("unexpected HTTP status")
)
