//go:build !linux && !darwin

package monitor

import (
	"errors"
	"runtime"
)

func diskUsage(string) (total, avail uint64, err error) {
	return 0, 0, errors.New("disk usage is not supported on " + runtime.GOOS)
}
