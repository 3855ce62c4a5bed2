package services

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Temporal reference extraction: derives the date an answer should be
// anchored to from free text. Explicit absolute dates win over relative
// offsets; anything unparseable degrades to "no explicit date found".

var (
	isoDatePattern   = regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`)
	slashDatePattern = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)

	// "15 January 2026", "January 15, 2026", "January 2026"
	monthDatePattern = regexp.MustCompile(`(?i)\b(?:(\d{1,2})(?:st|nd|rd|th)?\s+)?` +
		`(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?` +
		`(?:\s+(\d{1,2})(?:st|nd|rd|th)?,?)?\s+(\d{4})\b`)

	// "next 2 weeks", "next 1 day"
	relativePattern = regexp.MustCompile(`(?i)\bnext\s+(\d+)\s+(day|week|month|year)s?\b`)
)

var monthsByPrefix = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// ExtractReferenceDate returns the date the query's answer should be
// anchored to. The second return value is false when the query carries no
// explicit or relative date, signaling the caller to default to now. The
// function is pure and total; malformed input never produces an error.
func ExtractReferenceDate(query string, now time.Time) (time.Time, bool) {
	now = now.UTC()

	if ref, ok := extractAbsoluteDate(query, now); ok {
		return ref, true
	}
	if ref, ok := extractRelativeDate(query, now); ok {
		return ref, true
	}
	return time.Time{}, false
}

func extractAbsoluteDate(query string, now time.Time) (time.Time, bool) {
	if m := isoDatePattern.FindStringSubmatch(query); m != nil {
		if ref, ok := buildDate(m[1], m[2], m[3], now); ok {
			return ref, true
		}
	}

	if m := slashDatePattern.FindStringSubmatch(query); m != nil {
		// Day-first, matching the product's primary market.
		if ref, ok := buildDate(m[3], m[2], m[1], now); ok {
			return ref, true
		}
	}

	if m := monthDatePattern.FindStringSubmatch(query); m != nil {
		month := monthsByPrefix[strings.ToLower(m[2])]
		year, _ := strconv.Atoi(m[4])

		dayStr := m[1]
		if dayStr == "" {
			dayStr = m[3]
		}

		if dayStr == "" {
			// Month and year only: distinguishable from now when the
			// month or year differs; anchored to the first of the month.
			if year != now.Year() || month != now.Month() {
				return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC), true
			}
			return time.Time{}, false
		}

		day, _ := strconv.Atoi(dayStr)
		if ref, ok := validDate(year, month, day, now); ok {
			return ref, true
		}
	}

	return time.Time{}, false
}

func buildDate(yearStr, monthStr, dayStr string, now time.Time) (time.Time, bool) {
	year, _ := strconv.Atoi(yearStr)
	month, _ := strconv.Atoi(monthStr)
	day, _ := strconv.Atoi(dayStr)
	if month < 1 || month > 12 {
		return time.Time{}, false
	}
	return validDate(year, time.Month(month), day, now)
}

func validDate(year int, month time.Month, day int, now time.Time) (time.Time, bool) {
	ref := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)

	// time.Date normalizes overflow (e.g. Feb 30); reject anything that moved.
	if ref.Year() != year || ref.Month() != month || ref.Day() != day {
		return time.Time{}, false
	}

	// A date equal to today is not distinguishable from now.
	if ref.Year() == now.Year() && ref.Month() == now.Month() && ref.Day() == now.Day() {
		return time.Time{}, false
	}

	return ref, true
}

func extractRelativeDate(query string, now time.Time) (time.Time, bool) {
	m := relativePattern.FindStringSubmatch(query)
	if m == nil {
		return time.Time{}, false
	}

	n, err := strconv.Atoi(m[1])
	if err != nil {
		return time.Time{}, false
	}

	// Calendar-naive arithmetic: months and years are approximated as
	// 30 and 365 days.
	var days int
	switch strings.ToLower(m[2]) {
	case "day":
		days = n
	case "week":
		days = n * 7
	case "month":
		days = n * 30
	case "year":
		days = n * 365
	}

	ref := now.AddDate(0, 0, days)
	return time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, time.UTC), true
}
