package normalizer

import (
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultStreetCacheSize số địa chỉ được memo trong LRU
const DefaultStreetCacheSize = 4096

var (
	unitMarkerRe  = regexp.MustCompile(`\s+(?:apartment|apt)(?:\b|\d).*$|#.*$`)
	streetPunctRe = regexp.MustCompile(`[.,]`)
	houseNumberRe = regexp.MustCompile(`^\d+[a-z]?$`)
)

// StreetParts tokenized street line, all lowercase
type StreetParts struct {
	Core       string `json:"core"`       // house + direction + street, the street matching key
	House      string `json:"house"`      // house number ("200", "12b")
	Street     string `json:"street"`     // remainder after house and direction, suffix expanded
	StreetName string `json:"streetName"` // street without the suffix
	Suffix     string `json:"suffix"`     // full form ("drive")
	Direction  string `json:"direction"`  // abbreviation ("ne")
}

// StreetParser parses street lines, memoizing results in a bounded LRU.
// Safe for concurrent use.
type StreetParser struct {
	memo *lru.Cache[string, StreetParts]
}

// NewStreetParser tạo mới StreetParser với LRU size phần tử
func NewStreetParser(size int) (*StreetParser, error) {
	if size <= 0 {
		size = DefaultStreetCacheSize
	}
	memo, err := lru.New[string, StreetParts](size)
	if err != nil {
		return nil, fmt.Errorf("không thể tạo LRU cache: %w", err)
	}
	return &StreetParser{memo: memo}, nil
}

// Parse tokenizes one free-text address line. Empty input yields empty parts.
func (p *StreetParser) Parse(line string) StreetParts {
	if parts, ok := p.memo.Get(line); ok {
		return parts
	}
	parts := parseStreet(line)
	p.memo.Add(line, parts)
	return parts
}

// Len số phần tử đang được memo
func (p *StreetParser) Len() int {
	return p.memo.Len()
}

var defaultParser atomic.Pointer[StreetParser]

func init() {
	p, err := NewStreetParser(DefaultStreetCacheSize)
	if err != nil {
		panic(err)
	}
	defaultParser.Store(p)
}

// SetStreetCacheSize replaces the shared parser with one of the given size.
func SetStreetCacheSize(size int) error {
	p, err := NewStreetParser(size)
	if err != nil {
		return err
	}
	defaultParser.Store(p)
	return nil
}

// ParseStreet parses with the shared parser.
func ParseStreet(line string) StreetParts {
	return defaultParser.Load().Parse(line)
}

func parseStreet(raw string) StreetParts {
	var out StreetParts
	s := strings.ToLower(raw)
	s = unitMarkerRe.ReplaceAllString(s, "")
	tokens := strings.Fields(streetPunctRe.ReplaceAllString(s, " "))
	if len(tokens) == 0 {
		return out
	}

	if houseNumberRe.MatchString(tokens[0]) {
		out.House = tokens[0]
		tokens = tokens[1:]
	}

	if len(tokens) > 0 {
		if dir, ok := tables.direction(tokens[0]); ok {
			out.Direction = dir
			tokens = tokens[1:]
		}
	}

	nameTokens := tokens
	if n := len(tokens); n > 0 {
		if full, ok := tables.suffix(tokens[n-1]); ok {
			tokens[n-1] = full
			out.Suffix = full
			nameTokens = tokens[:n-1]
		}
	}

	out.Street = strings.Join(tokens, " ")
	out.StreetName = strings.Join(nameTokens, " ")
	if out.StreetName == "" {
		out.StreetName = out.Street
	}
	out.Core = JoinNonEmpty(out.House, out.Direction, out.Street)
	return out
}

// JoinNonEmpty joins the non-empty values with single spaces.
func JoinNonEmpty(values ...string) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}
