// Package release recognizes deployment naming conventions shared by
// source-control release tags and tracker fix versions.
package release

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Environment is the deployment target encoded in a release name.
type Environment string

const (
	Production Environment = "production"
	Staging    Environment = "staging"
)

// Two naming families are recognized, case-insensitive:
//
//	"Live - 6/Oct/2025"            production
//	"Website - 6/Oct/2025"         production
//	"Beta - 7/Oct/2025"            staging
//	"Preview - 7/Oct/2025"         staging
//	"Proj_Product_2025_10_06"      production
//
// The separator in the dash family is exactly " - ".
var (
	dashedRe     = regexp.MustCompile(`(?i)^(live|beta|preview|website) - (\d{1,2})/([a-z]{3})/(\d{4})$`)
	underscoreRe = regexp.MustCompile(`(?i)^[a-z0-9]+_[a-z0-9]+_(\d{4})_(\d{2})_(\d{2})$`)
)

var months = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// Classify parses a release or fix-version name. It returns the environment,
// the date encoded in the name, and whether the name matched a recognized
// pattern at all.
func Classify(name string) (Environment, time.Time, bool) {
	name = strings.TrimSpace(name)

	if m := dashedRe.FindStringSubmatch(name); m != nil {
		month, ok := months[strings.ToLower(m[3])]
		if !ok {
			return "", time.Time{}, false
		}
		day, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[4])
		date := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
		if date.Day() != day {
			// Overflowed the month (e.g. 31/Feb).
			return "", time.Time{}, false
		}

		switch strings.ToLower(m[1]) {
		case "live", "website":
			return Production, date, true
		default:
			return Staging, date, true
		}
	}

	if m := underscoreRe.FindStringSubmatch(name); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		if month < 1 || month > 12 {
			return "", time.Time{}, false
		}
		date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		if date.Day() != day {
			return "", time.Time{}, false
		}
		return Production, date, true
	}

	return "", time.Time{}, false
}
