// Package normalizer turns raw property/owner field values into canonical,
// comparable forms. Every function here is pure and deterministic.
package normalizer

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	nonAlnumRe    = regexp.MustCompile(`[^0-9A-Za-z]+`)
	nonDigitRe    = regexp.MustCompile(`\D+`)
	whitespaceRe  = regexp.MustCompile(`\s+`)
	ownerPunctRe  = regexp.MustCompile(`[.,]`)
	numberJunkRe  = regexp.MustCompile(`[^0-9.\-]`)
	headerJunkRe  = regexp.MustCompile(`[^a-z0-9]+`)
	truthyFlagSet = map[string]bool{"1": true, "true": true, "yes": true, "y": true, "t": true}
)

// APN strips every non-alphanumeric character and uppercases.
func APN(s string) string {
	return strings.ToUpper(nonAlnumRe.ReplaceAllString(s, ""))
}

// County lowercases, collapses whitespace and strips trailing "county" tokens.
func County(s string) string {
	fields := strings.Fields(strings.ToLower(s))
	for len(fields) > 1 && fields[len(fields)-1] == "county" {
		fields = fields[:len(fields)-1]
	}
	return strings.Join(fields, " ")
}

// Owner lowercases, drops periods and commas, collapses whitespace.
func Owner(s string) string {
	s = ownerPunctRe.ReplaceAllString(strings.ToLower(s), "")
	return strings.Join(strings.Fields(s), " ")
}

// Zip returns the first five digits, the matching form.
func Zip(s string) string {
	return truncate(nonDigitRe.ReplaceAllString(s, ""), 5)
}

// ZipStored returns up to ten digits, the stored form (ZIP+4).
func ZipStored(s string) string {
	return truncate(nonDigitRe.ReplaceAllString(s, ""), 10)
}

// Phone keeps digits only and drops a leading 1 from 11-digit numbers.
// The result is not validated further.
func Phone(s string) string {
	digits := nonDigitRe.ReplaceAllString(s, "")
	if len(digits) == 11 && digits[0] == '1' {
		return digits[1:]
	}
	return digits
}

// Email lowercases and strips all whitespace.
func Email(s string) string {
	return whitespaceRe.ReplaceAllString(strings.ToLower(s), "")
}

// City lowercases and collapses whitespace.
func City(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// State trims and uppercases.
func State(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Flag parses a do-not-call style boolean: 1, true, yes, y, t.
func Flag(s string) bool {
	return truthyFlagSet[strings.ToLower(strings.TrimSpace(s))]
}

// ParseNumber tolerates currency symbols, thousands separators and padding.
// Empty, unparsable and non-finite values are absent (nil).
func ParseNumber(s string) *float64 {
	cleaned := numberJunkRe.ReplaceAllString(strings.TrimSpace(s), "")
	if cleaned == "" {
		return nil
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// HeaderKey folds a column header to ASCII, lowercases it and strips
// everything that is not a letter or digit.
func HeaderKey(header string) string {
	folded := strings.ToLower(unidecode.Unidecode(header))
	return headerJunkRe.ReplaceAllString(folded, "")
}

// TitleCase title-cases a suffix such as "drive" → "Drive".
func TitleCase(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	// cases.Caser is stateful, one per call
	return cases.Title(language.English).String(strings.ToLower(s))
}

// Text renders a decoded cell value as a trimmed string.
func Text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return ""
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return Text(float64(t))
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	case []any:
		if len(t) == 0 {
			return ""
		}
		return Text(t[0])
	case []string:
		if len(t) == 0 {
			return ""
		}
		return strings.TrimSpace(t[0])
	default:
		return ""
	}
}

// Values flattens a cell that may hold a list into trimmed non-empty strings.
func Values(v any) []string {
	var out []string
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if s := Text(item); s != "" {
				out = append(out, s)
			}
		}
	case []string:
		for _, item := range t {
			if s := strings.TrimSpace(item); s != "" {
				out = append(out, s)
			}
		}
	default:
		if s := Text(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Dedupe drops empty strings and repeats, keeping first-seen order.
func Dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
