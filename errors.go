// SPDX-License-Identifier: EPL-2.0

package audtap

import "errors"

var (
	ErrInvalidOptions = errors.New("invalid options")
	ErrNoFetcher      = errors.New("no fetcher configured")
	ErrClosed         = errors.New("engine closed")
)
