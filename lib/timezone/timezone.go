// Package timezone pins batch dates to the business timezone so that a run
// scheduled near midnight on a UTC host still sees the right day.
package timezone

import (
	"fmt"
	"os"
	"strings"
	"time"
)

const DefaultLocation = "America/Argentina/Buenos_Aires"

var Location *time.Location

func init() {
	name := os.Getenv("LIBGAL_TZ")
	if name == "" {
		name = DefaultLocation
	}
	var err error
	Location, err = time.LoadLocation(name)
	if err != nil {
		Location = time.Local
	}
}

func Now() time.Time {
	return time.Now().In(Location)
}

// ParseODate reads a processing date written as 20060102 or 2006-01-02.
// An empty string is today.
func ParseODate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Now(), nil
	}
	for _, layout := range []string{"20060102", time.DateOnly} {
		if t, err := time.ParseInLocation(layout, s, Location); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid processing date %q, expected YYYYMMDD", s)
}
