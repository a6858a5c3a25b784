// Package geotime resolves the loosely written timezone names people put in
// config files into IANA locations.
package geotime

import (
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/teranos/tempo/errors"
)

// Local is the configuration value that selects the host's zone.
const Local = "local"

var timezoneByAbbreviation = map[string]string{
	"utc":  "UTC",
	"gmt":  "UTC",
	"pst":  "America/Los_Angeles",
	"pdt":  "America/Los_Angeles",
	"mst":  "America/Denver",
	"mdt":  "America/Denver",
	"cst":  "America/Chicago",
	"cdt":  "America/Chicago",
	"est":  "America/New_York",
	"edt":  "America/New_York",
	"bst":  "Europe/London",
	"cet":  "Europe/Berlin",
	"cest": "Europe/Berlin",
	"eet":  "Europe/Helsinki",
	"eest": "Europe/Helsinki",
	"ist":  "Asia/Kolkata",
	"sgt":  "Asia/Singapore",
	"hkt":  "Asia/Hong_Kong",
	"jst":  "Asia/Tokyo",
	"aest": "Australia/Sydney",
	"aedt": "Australia/Sydney",
	"nzst": "Pacific/Auckland",
}

// NormalizeTimezone resolves input into a canonical IANA name. It accepts
// IANA names in any letter case ("europe/amsterdam"), common abbreviations
// ("CET") and "local".
func NormalizeTimezone(input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "UTC", nil
	}
	if strings.EqualFold(trimmed, Local) {
		return DetectLocalTimezone()
	}

	if isValidTimezone(trimmed) && !hasIncorrectCapitalization(trimmed) {
		return trimmed, nil
	}
	if candidate := sanitizeTimezone(trimmed); isValidTimezone(candidate) {
		return candidate, nil
	}
	if tz, ok := timezoneByAbbreviation[strings.ToLower(trimmed)]; ok {
		return tz, nil
	}
	// Case-insensitive file systems accept any casing; keep what loads.
	if isValidTimezone(trimmed) {
		return trimmed, nil
	}

	return "", errors.WithHint(
		errors.Newf("unknown timezone: %s", input),
		"use an IANA name such as Europe/Amsterdam, an abbreviation such as CET, or \"local\"")
}

// LoadLocation normalizes input and loads the location.
func LoadLocation(input string) (*time.Location, error) {
	name, err := NormalizeTimezone(input)
	if err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, errors.Wrapf(err, "load timezone %s", name)
	}
	return loc, nil
}

// DetectLocalTimezone determines the host operating system timezone.
func DetectLocalTimezone() (string, error) {
	if tz := os.Getenv("TZ"); tz != "" {
		if tz = strings.TrimPrefix(tz, ":"); isValidTimezone(tz) {
			return tz, nil
		}
	}

	if name := time.Now().Location().String(); name != "" && name != "Local" {
		if isValidTimezone(name) {
			return name, nil
		}
	}

	if data, err := os.ReadFile("/etc/timezone"); err == nil {
		tz := strings.TrimSpace(string(data))
		if isValidTimezone(tz) {
			return tz, nil
		}
	}

	for _, path := range []string{"/etc/localtime", "/var/db/timezone/zoneinfo/localtime"} {
		if tz, err := readZoneinfoSymlink(path); err == nil {
			return tz, nil
		}
	}

	return "", errors.New("could not detect local timezone: tried TZ, /etc/timezone and /etc/localtime")
}

func readZoneinfoSymlink(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", err
	}
	idx := strings.Index(resolved, "zoneinfo")
	if idx == -1 {
		return "", errors.New("zoneinfo segment not found")
	}
	candidate := strings.TrimPrefix(resolved[idx+len("zoneinfo"):], string(filepath.Separator))
	candidate = filepath.ToSlash(candidate)
	if isValidTimezone(candidate) {
		return candidate, nil
	}
	return "", errors.Newf("invalid timezone: %q (from %s)", candidate, path)
}

// sanitizeTimezone title-cases each path segment: "america/new york"
// becomes "America/New_York".
func sanitizeTimezone(tz string) string {
	trimmed := strings.Trim(strings.TrimSpace(tz), "\"'")
	trimmed = strings.ReplaceAll(trimmed, " ", "_")
	parts := strings.Split(trimmed, "/")
	for i, part := range parts {
		words := strings.Split(part, "_")
		for j, w := range words {
			words[j] = title(w)
		}
		parts[i] = strings.Join(words, "_")
	}
	return strings.Join(parts, "/")
}

func title(s string) string {
	if s == "" {
		return s
	}
	lower := strings.ToLower(s)
	return strings.ToUpper(lower[:1]) + lower[1:]
}

func isValidTimezone(tz string) bool {
	if tz == "" {
		return false
	}
	_, err := time.LoadLocation(tz)
	return err == nil
}

// hasIncorrectCapitalization flags names with a lowercase segment start,
// e.g. "america/New_York".
func hasIncorrectCapitalization(tz string) bool {
	if strings.ToLower(tz) == tz && tz != "UTC" {
		return true
	}
	for _, part := range strings.Split(tz, "/") {
		if len(part) > 0 && part[0] >= 'a' && part[0] <= 'z' {
			return true
		}
	}
	return false
}
