//go:build !unix

package budget

import (
	"errors"
	"time"
)

// processCPUTime is unavailable; cpu limits are ignored on this platform.
func processCPUTime() (time.Duration, error) {
	return 0, errors.New("process cpu time is not available")
}
