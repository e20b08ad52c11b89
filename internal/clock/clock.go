package clock

import "time"

// Clock supplies the canonical "now" for booking timestamps. All booking
// dates are interpreted in one civil time zone regardless of server locale.
type Clock interface {
	Now() time.Time
}

type zoneClock struct {
	loc *time.Location
}

// New returns a Clock pinned to Asia/Kolkata. If the zone database is
// unavailable it falls back to a fixed +05:30 offset.
func New() Clock {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		loc = time.FixedZone("IST", 5*3600+1800)
	}
	return &zoneClock{loc: loc}
}

func (c *zoneClock) Now() time.Time {
	return time.Now().In(c.loc)
}
