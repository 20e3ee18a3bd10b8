package record

import (
	"fmt"
	"strconv"
	"strings"
)

// Grammar keys.
const (
	KeyCode       = "ERI Code"
	KeyLocation   = "ERI Location"
	KeyRevenue    = "Revenue"
	KeyIndustry   = "Industry"
	KeyExperience = "Years of Experience"
)

// Parse reads the string form:
//
//	ERI Code=4006, ERI Location=Dallas, Texas, Revenue=565000000, Industry=All Industries - Diversified, Years of Experience=11, 75th Percentile
//
// Segments are comma separated. A bare segment directly after the location
// that is neither a pair nor a statistic token is the state half of a
// "City, State" location. Exactly one statistic token is required; every
// key is optional and may appear at most once.
func Parse(s string) (InputRecord, error) {
	var (
		r         InputRecord
		seen      = make(map[string]bool)
		lastKey   string
		locMerged bool
	)

	for _, raw := range strings.Split(s, ",") {
		seg := strings.TrimSpace(raw)
		if seg == "" {
			continue
		}

		key, value, isPair := strings.Cut(seg, "=")
		if !isPair {
			if st, err := ParseStatistic(seg); err == nil {
				if r.Statistic != StatUnknown {
					return InputRecord{}, fmt.Errorf("record: parse: second statistic token %q", seg)
				}
				r.Statistic = st
				lastKey = ""
				continue
			}
			if lastKey == KeyLocation && !locMerged {
				r.Location += ", " + seg
				locMerged = true
				continue
			}
			return InputRecord{}, fmt.Errorf("record: parse: unexpected segment %q", seg)
		}

		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if seen[key] {
			return InputRecord{}, fmt.Errorf("record: parse: duplicate key %q", key)
		}
		seen[key] = true
		lastKey = key

		switch key {
		case KeyCode:
			r.Code = value
		case KeyLocation:
			r.Location = value
		case KeyRevenue:
			n, err := parseRevenue(value)
			if err != nil {
				return InputRecord{}, fmt.Errorf("record: parse: %w", err)
			}
			r.Revenue = n
		case KeyIndustry:
			r.Industry = value
		case KeyExperience:
			if value == "" || value == NotApplicable {
				continue
			}
			y, err := strconv.Atoi(value)
			if err != nil || y < 0 {
				return InputRecord{}, fmt.Errorf("record: parse: invalid years of experience %q", value)
			}
			r.ExperienceYears = &y
		default:
			return InputRecord{}, fmt.Errorf("record: parse: unknown key %q", key)
		}
	}

	if r.Statistic == StatUnknown {
		return InputRecord{}, ErrMissingStatistic
	}
	return r, nil
}

// Format renders r in the string grammar. Parse(Format(r)) yields r.
func Format(r InputRecord) string {
	parts := []string{
		KeyCode + "=" + r.Code,
		KeyLocation + "=" + r.Location,
		KeyRevenue + "=" + strconv.FormatInt(r.Revenue, 10),
		KeyIndustry + "=" + r.Industry,
	}
	if r.ExperienceYears != nil {
		parts = append(parts, KeyExperience+"="+strconv.Itoa(*r.ExperienceYears))
	}
	parts = append(parts, r.Statistic.String())
	return strings.Join(parts, ", ")
}

// String implements fmt.Stringer with the grammar form.
func (r InputRecord) String() string { return Format(r) }

// parseRevenue accepts plain or thousands-separated integers.
func parseRevenue(v string) (int64, error) {
	clean := strings.NewReplacer(",", "", " ", "", "_", "").Replace(v)
	if clean == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(clean, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid revenue %q", v)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative revenue %q", v)
	}
	return n, nil
}
