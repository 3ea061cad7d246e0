package utils

import (
	"strings"
	"time"

	"golang.org/x/text/language"
)

const (
	clock12 = "03:04 PM"
	clock24 = "15:04"
)

// regions whose conventional clock is 12-hour with an AM/PM marker.
var twelveHourRegions = map[string]bool{
	"US": true, "CA": true, "AU": true, "NZ": true, "PH": true,
	"IN": true, "PK": true, "BD": true, "EG": true, "SA": true, "MY": true,
}

// ParseLocale parses a BCP 47 tag such as "en-PH". Invalid or empty input
// falls back to American English.
func ParseLocale(s string) language.Tag {
	tag, err := language.Parse(strings.TrimSpace(s))
	if err != nil || tag == language.Und {
		return language.AmericanEnglish
	}
	return tag
}

// Uses12HourClock reports whether the tag's (possibly inferred) region shows
// times on a 12-hour clock.
func Uses12HourClock(tag language.Tag) bool {
	region, _ := tag.Region()
	return twelveHourRegions[region.String()]
}

// TimeLabel renders the hour and minute of t in loc for display next to a
// message, e.g. "03:04 PM" for en-PH and "15:04" for de-DE. A nil loc means UTC.
func TimeLabel(t time.Time, loc *time.Location, tag language.Tag) string {
	if loc == nil {
		loc = time.UTC
	}
	if Uses12HourClock(tag) {
		return t.In(loc).Format(clock12)
	}
	return t.In(loc).Format(clock24)
}
