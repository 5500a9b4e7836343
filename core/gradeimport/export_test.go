package gradeimport

import "time"

// SetNow freezes the clock used to stamp applied changes.
func SetNow(now time.Time) (restore func()) {
	nowFunc = func() time.Time { return now }
	return func() { nowFunc = time.Now }
}
