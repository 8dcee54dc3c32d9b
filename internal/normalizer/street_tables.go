package normalizer

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data/street_tables.yaml
var streetTablesYAML []byte

// StreetTables directional and suffix abbreviation tables
type StreetTables struct {
	Directions map[string]string `yaml:"directions"` // word → abbreviation
	Suffixes   map[string]string `yaml:"suffixes"`   // abbreviation → full form

	abbrevDirs map[string]bool
	fullSuffix map[string]bool
}

// LoadStreetTables load bảng viết tắt từ embedded YAML
func LoadStreetTables() (*StreetTables, error) {
	t := &StreetTables{}
	if err := yaml.Unmarshal(streetTablesYAML, t); err != nil {
		return nil, fmt.Errorf("street tables: %w", err)
	}
	if len(t.Directions) == 0 || len(t.Suffixes) == 0 {
		return nil, fmt.Errorf("street tables: empty directions or suffixes")
	}
	t.abbrevDirs = make(map[string]bool, len(t.Directions))
	for _, abbr := range t.Directions {
		t.abbrevDirs[abbr] = true
	}
	t.fullSuffix = make(map[string]bool, len(t.Suffixes))
	for _, full := range t.Suffixes {
		t.fullSuffix[full] = true
	}
	return t, nil
}

var tables = mustLoadStreetTables()

func mustLoadStreetTables() *StreetTables {
	t, err := LoadStreetTables()
	if err != nil {
		panic(err)
	}
	return t
}

// direction maps a lowercase token to its abbreviation
func (t *StreetTables) direction(token string) (string, bool) {
	if abbr, ok := t.Directions[token]; ok {
		return abbr, true
	}
	if t.abbrevDirs[token] {
		return token, true
	}
	return "", false
}

// suffix maps a lowercase token to its full form
func (t *StreetTables) suffix(token string) (string, bool) {
	if full, ok := t.Suffixes[token]; ok {
		return full, true
	}
	if t.fullSuffix[token] {
		return token, true
	}
	return "", false
}

// Direction normalizes a row-supplied direction ("North", "N.") to its
// lowercase abbreviation. Unknown values are returned lowercased.
func Direction(raw string) string {
	token := strings.ToLower(strings.TrimSpace(strings.ReplaceAll(raw, ".", "")))
	if abbr, ok := tables.direction(token); ok {
		return abbr
	}
	return token
}

// Suffix normalizes a row-supplied suffix ("Dr.", "AVE") to its lowercase
// full form. Unknown values are returned lowercased.
func Suffix(raw string) string {
	token := strings.ToLower(strings.TrimSpace(strings.ReplaceAll(raw, ".", "")))
	if full, ok := tables.suffix(token); ok {
		return full
	}
	return token
}
