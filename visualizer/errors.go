// SPDX-License-Identifier: EPL-2.0

package visualizer

import "errors"

var (
	ErrAlreadyRunning = errors.New("visualizer already running")
	ErrWorkerPanic    = errors.New("visualizer panicked")
)
