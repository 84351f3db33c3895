package utils

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidDuration = errors.New("invalid duration")

// ParseShareDuration converts a share duration spec into a concrete
// duration. A bare integer is read as a number of days; an integer
// followed by 'd' likewise. Any other unit, a non-numeric value, or a
// non-positive value is rejected.
func ParseShareDuration(spec string) (time.Duration, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return 0, ErrInvalidDuration
	}

	if _, err := strconv.Atoi(spec); err == nil {
		spec += "d"
	}

	unit := spec[len(spec)-1]
	value, err := strconv.Atoi(spec[:len(spec)-1])
	if err != nil || value <= 0 {
		return 0, ErrInvalidDuration
	}

	switch unit {
	case 'd':
		return time.Duration(value) * 24 * time.Hour, nil
	default:
		return 0, ErrInvalidDuration
	}
}
