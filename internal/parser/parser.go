// Package parser turns free-text user replies into candidate durations.
// It is pure and side-effect free: anything it cannot recognize is reported
// as unparsed and the caller decides the fallback.
package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Defaults are the policy durations vague qualifiers resolve to.
type Defaults struct {
	Short   time.Duration // "a bit", "a little"
	Minimal time.Duration // "quick", "just a sec"
}

const (
	FallbackShort   = 5 * time.Minute
	FallbackMinimal = 2 * time.Minute
)

type Parser struct {
	defaults Defaults
}

func New(d Defaults) *Parser {
	if d.Short <= 0 {
		d.Short = FallbackShort
	}
	if d.Minimal <= 0 {
		d.Minimal = FallbackMinimal
	}
	return &Parser{defaults: d}
}

var (
	numericRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:more\s+)?(hours?|hrs?|h|minutes?|mins?|m|seconds?|secs?|s)\b`)
	wordRe    = regexp.MustCompile(`\b(one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve|fifteen|twenty|thirty|forty|forty-five|sixty|ninety)\s+(?:more\s+)?(hours?|minutes?|mins?)\b`)
	halfRe    = regexp.MustCompile(`\bhalf(?:\s+an?)?[\s-]?hour\b`)
	anHourRe  = regexp.MustCompile(`\ban\s+hour\b`)
	aMinuteRe = regexp.MustCompile(`\ba\s+minute\b`)
)

var numberWords = map[string]float64{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"eleven": 11, "twelve": 12, "fifteen": 15, "twenty": 20,
	"thirty": 30, "forty": 40, "forty-five": 45, "sixty": 60, "ninety": 90,
}

// Parse extracts a duration from free text. The second return value is
// false when no known pattern matched.
func (p *Parser) Parse(text string) (time.Duration, bool) {
	s := strings.ToLower(strings.TrimSpace(text))
	if s == "" {
		return 0, false
	}

	if halfRe.MatchString(s) {
		return 30 * time.Minute, true
	}

	if m := numericRe.FindStringSubmatch(s); m != nil {
		value, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			if d, ok := applyUnit(value, m[2]); ok {
				return d, true
			}
		}
	}

	if m := wordRe.FindStringSubmatch(s); m != nil {
		if value, ok := numberWords[m[1]]; ok {
			if d, ok := applyUnit(value, m[2]); ok {
				return d, true
			}
		}
	}

	if anHourRe.MatchString(s) {
		return time.Hour, true
	}
	if aMinuteRe.MatchString(s) {
		return time.Minute, true
	}

	// Vague qualifiers map to policy defaults. Checked last so explicit
	// durations ("30 seconds") always win.
	switch {
	case strings.Contains(s, "a bit"), strings.Contains(s, "a little"), strings.Contains(s, "a few"):
		return p.defaults.Short, true
	case strings.Contains(s, "quick"), strings.Contains(s, "sec"), strings.Contains(s, "moment"):
		return p.defaults.Minimal, true
	}

	return 0, false
}

func applyUnit(value float64, unit string) (time.Duration, bool) {
	switch {
	case strings.HasPrefix(unit, "h"):
		return time.Duration(value * float64(time.Hour)), true
	case strings.HasPrefix(unit, "m"):
		return time.Duration(value * float64(time.Minute)), true
	case strings.HasPrefix(unit, "s"):
		return time.Duration(value * float64(time.Second)), true
	default:
		return 0, false
	}
}
