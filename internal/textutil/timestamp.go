// Package textutil holds the small parsing and formatting helpers shared by the
// analysis pipeline: ISO-8601 durations, M:SS timestamps and YouTube video ids.
package textutil

import (
	"fmt"
	"regexp"
	"strconv"
)

var (
	isoDurationRe = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)
	// "at 2:35" or "at 1:02:35"; the minutes of an M:SS form may run past 59.
	atTimestampRe = regexp.MustCompile(`at\s+(\d+):(\d{2})(?::(\d{2}))?`)
	clockRe       = regexp.MustCompile(`^(\d+):(\d{2})(?::(\d{2}))?$`)
)

// ParseISODuration converts a YouTube contentDetails duration such as PT1H2M10S
// into seconds. ok is false when s is not an ISO-8601 duration.
func ParseISODuration(s string) (seconds int, ok bool) {
	m := isoDurationRe.FindStringSubmatch(s)
	if m == nil || s == "P" || s == "PT" {
		return 0, false
	}
	days, hours, minutes, secs := atoi(m[1]), atoi(m[2]), atoi(m[3]), atoi(m[4])
	return days*86400 + hours*3600 + minutes*60 + secs, true
}

// FormatTimestamp renders seconds as M:SS, or H:MM:SS once an hour is reached.
func FormatTimestamp(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// ExtractTimestamp finds the first "at M:SS" (or "at H:MM:SS") in text and returns it
// in seconds. Text without one sorts first, so it returns 0.
func ExtractTimestamp(text string) int {
	m := atTimestampRe.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	if m[3] != "" {
		return atoi(m[1])*3600 + atoi(m[2])*60 + atoi(m[3])
	}
	return atoi(m[1])*60 + atoi(m[2])
}

// HasTimestamp reports whether text carries an "at M:SS" marker.
func HasTimestamp(text string) bool {
	return atTimestampRe.MatchString(text)
}

// ParseClock parses a bare "M:SS" or "H:MM:SS" string.
func ParseClock(s string) (int, bool) {
	m := clockRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	if m[3] != "" {
		return atoi(m[1])*3600 + atoi(m[2])*60 + atoi(m[3]), true
	}
	return atoi(m[1])*60 + atoi(m[2]), true
}

func atoi(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
