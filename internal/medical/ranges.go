package medical

import (
	"regexp"
	"strconv"
	"strings"
)

// ReferenceRange is an inclusive interval; either bound may be open.
type ReferenceRange struct {
	Min *float64
	Max *float64
}

var (
	rangeBetweenRe = regexp.MustCompile(`(-?\d+(?:\.\d+)?)\s*(?:-|–|to)\s*(\d+(?:\.\d+)?)`)
	rangeUpperRe   = regexp.MustCompile(`(?i)(?:<=?|≤|up\s*to|less\s+than|below)\s*(\d+(?:\.\d+)?)`)
	rangeLowerRe   = regexp.MustCompile(`(?i)(?:>=?|≥|more\s+than|greater\s+than|above)\s*(\d+(?:\.\d+)?)`)
)

func ptr(f float64) *float64 {
	return &f
}

// Between returns the closed range [min, max].
func Between(min, max float64) ReferenceRange {
	return ReferenceRange{Min: ptr(min), Max: ptr(max)}
}

// AtMost returns the range (-inf, max].
func AtMost(max float64) ReferenceRange {
	return ReferenceRange{Max: ptr(max)}
}

// AtLeast returns the range [min, +inf).
func AtLeast(min float64) ReferenceRange {
	return ReferenceRange{Min: ptr(min)}
}

// ParseRange parses reference range notations such as "70-100", "70 to 100",
// "<200", "> 40" and "up to 5". It returns false when nothing usable is found.
func ParseRange(s string) (ReferenceRange, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ReferenceRange{}, false
	}

	if m := rangeBetweenRe.FindStringSubmatch(s); m != nil {
		lo, err1 := strconv.ParseFloat(m[1], 64)
		hi, err2 := strconv.ParseFloat(m[2], 64)
		if err1 == nil && err2 == nil && lo <= hi {
			return Between(lo, hi), true
		}
	}
	if m := rangeUpperRe.FindStringSubmatch(s); m != nil {
		if hi, err := strconv.ParseFloat(m[1], 64); err == nil {
			return AtMost(hi), true
		}
	}
	if m := rangeLowerRe.FindStringSubmatch(s); m != nil {
		if lo, err := strconv.ParseFloat(m[1], 64); err == nil {
			return AtLeast(lo), true
		}
	}
	return ReferenceRange{}, false
}

// IsZero reports whether both bounds are open.
func (r ReferenceRange) IsZero() bool {
	return r.Min == nil && r.Max == nil
}

// Contains reports whether v lies inside the range. An unbounded range
// contains everything.
func (r ReferenceRange) Contains(v float64) bool {
	if r.Min != nil && v < *r.Min {
		return false
	}
	if r.Max != nil && v > *r.Max {
		return false
	}
	return true
}

// String renders the range in the same notation ParseRange accepts.
func (r ReferenceRange) String() string {
	switch {
	case r.Min != nil && r.Max != nil:
		return formatNumber(*r.Min) + "-" + formatNumber(*r.Max)
	case r.Max != nil:
		return "<" + formatNumber(*r.Max)
	case r.Min != nil:
		return ">" + formatNumber(*r.Min)
	default:
		return ""
	}
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// EvaluateLab derives status and flag for a value against its range.
// A value beyond 1.5x the upper bound or under half the lower bound is
// critical. Without a range the value is reported normal and unflagged.
func EvaluateLab(value float64, r ReferenceRange) (LabStatus, bool) {
	if r.IsZero() || r.Contains(value) {
		return LabStatusNormal, false
	}
	if (r.Max != nil && value > *r.Max*1.5) || (r.Min != nil && value < *r.Min*0.5) {
		return LabStatusCritical, true
	}
	return LabStatusAbnormal, true
}

// DeriveTestStatus maps a value onto the five-way display status. Values
// outside the range by no more than 10% of the violated bound are borderline.
func DeriveTestStatus(value float64, r ReferenceRange) TestStatus {
	status, _ := EvaluateLab(value, r)
	switch status {
	case LabStatusNormal:
		return TestStatusNormal
	case LabStatusCritical:
		return TestStatusCritical
	}
	if r.Max != nil && value > *r.Max {
		if value <= *r.Max*1.1 {
			return TestStatusBorderline
		}
		return TestStatusHigh
	}
	if value >= *r.Min*0.9 {
		return TestStatusBorderline
	}
	return TestStatusLow
}

// Interpretation returns the canned sentence shown next to a test status.
func Interpretation(status TestStatus, hasRange bool) string {
	if !hasRange {
		return "No reference range available"
	}
	switch status {
	case TestStatusHigh:
		return "Above reference range"
	case TestStatusLow:
		return "Below reference range"
	case TestStatusCritical:
		return "Critically outside reference range"
	case TestStatusBorderline:
		return "Near the reference limit"
	default:
		return "Within reference range"
	}
}
