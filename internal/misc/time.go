package misc

import "time"

// ToSecondUTC drops sub-second precision and normalizes to UTC.
func ToSecondUTC(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
