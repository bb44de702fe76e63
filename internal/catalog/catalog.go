// Package catalog holds the fixed career-framework grade table.
//
// The table is embedded in the binary and parsed once at process start.
// A Catalog is immutable and safe to share across goroutines.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when looking up an id that is not in the catalog
var ErrNotFound = errors.New("grade not found")

// MinPosition and MaxPosition bound both visual scales
const (
	MinPosition = 0
	MaxPosition = 100
)

//go:embed grades.yaml
var gradesYAML []byte

// Style holds presentation-only attributes of a grade
type Style struct {
	Color  string `yaml:"color" json:"color"`
	Marker string `yaml:"marker" json:"marker"`
}

// Grade is one level of the career ladder
type Grade struct {
	ID                  string   `json:"id"`
	Rank                int      `json:"rank"`
	Label               string   `json:"label"`
	ShortLabel          string   `json:"short_label"`
	ScopePosition       float64  `json:"scope_position"`
	ProficiencyPosition float64  `json:"proficiency_position"`
	Role                RichText `json:"role"`
	Artifacts           RichText `json:"artifacts"`
	Partners            []string `json:"partners"`
	Style               Style    `json:"style"`
}

// Catalog is the ordered, read-only grade table
type Catalog struct {
	grades []*Grade
	byID   map[string]*Grade
}

// gradeFile is the on-disk shape of grades.yaml
type gradeFile struct {
	Grades []struct {
		ID          string   `yaml:"id"`
		Label       string   `yaml:"label"`
		ShortLabel  string   `yaml:"short_label"`
		Scope       float64  `yaml:"scope"`
		Proficiency float64  `yaml:"proficiency"`
		Role        string   `yaml:"role"`
		Artifacts   string   `yaml:"artifacts"`
		Partners    []string `yaml:"partners"`
		Style       Style    `yaml:"style"`
	} `yaml:"grades"`
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the process-wide catalog built from the embedded table
func Default() *Catalog {
	defaultOnce.Do(func() {
		cat, err := Load(gradesYAML)
		if err != nil {
			panic(fmt.Sprintf("embedded grade table is invalid: %v", err))
		}
		defaultCatalog = cat
	})
	return defaultCatalog
}

// Load parses and validates a grade table
func Load(data []byte) (*Catalog, error) {
	var file gradeFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if len(file.Grades) == 0 {
		return nil, fmt.Errorf("grade table is empty")
	}

	cat := &Catalog{
		grades: make([]*Grade, 0, len(file.Grades)),
		byID:   make(map[string]*Grade, len(file.Grades)),
	}
	ranks := make(map[int]string, len(file.Grades))

	for i, g := range file.Grades {
		if g.ID == "" {
			return nil, fmt.Errorf("grade #%d: id is required", i)
		}
		if g.Label == "" {
			return nil, fmt.Errorf("grade %s: label is required", g.ID)
		}
		if _, dup := cat.byID[g.ID]; dup {
			return nil, fmt.Errorf("grade %s: duplicate id", g.ID)
		}

		rank, ok := Rank(g.ID)
		if !ok {
			return nil, fmt.Errorf("grade %s: id has no numeric rank", g.ID)
		}
		if other, dup := ranks[rank]; dup {
			return nil, fmt.Errorf("grade %s: rank %d already used by %s", g.ID, rank, other)
		}
		ranks[rank] = g.ID

		if !inRange(g.Scope) || !inRange(g.Proficiency) {
			return nil, fmt.Errorf("grade %s: positions must be within [%d,%d]", g.ID, MinPosition, MaxPosition)
		}
		if len(g.Partners) == 0 {
			return nil, fmt.Errorf("grade %s: at least one partner is required", g.ID)
		}

		role, err := ParseRichText(g.Role)
		if err != nil {
			return nil, fmt.Errorf("grade %s: role: %w", g.ID, err)
		}
		artifacts, err := ParseRichText(g.Artifacts)
		if err != nil {
			return nil, fmt.Errorf("grade %s: artifacts: %w", g.ID, err)
		}

		shortLabel := g.ShortLabel
		if shortLabel == "" {
			shortLabel = g.ID
		}

		grade := &Grade{
			ID:                  g.ID,
			Rank:                rank,
			Label:               g.Label,
			ShortLabel:          shortLabel,
			ScopePosition:       g.Scope,
			ProficiencyPosition: g.Proficiency,
			Role:                role,
			Artifacts:           artifacts,
			Partners:            append([]string(nil), g.Partners...),
			Style:               g.Style,
		}

		cat.grades = append(cat.grades, grade)
		cat.byID[grade.ID] = grade
	}

	return cat, nil
}

// All returns every grade in catalog order
func (c *Catalog) All() []*Grade {
	result := make([]*Grade, len(c.grades))
	copy(result, c.grades)
	return result
}

// IDs returns every grade id in catalog order
func (c *Catalog) IDs() []string {
	ids := make([]string, len(c.grades))
	for i, g := range c.grades {
		ids[i] = g.ID
	}
	return ids
}

// Len returns the number of grades
func (c *Catalog) Len() int {
	return len(c.grades)
}

// Lookup returns the grade with the given id
func (c *Catalog) Lookup(id string) (*Grade, error) {
	g, ok := c.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return g, nil
}

// Contains reports whether id is a catalog grade
func (c *Catalog) Contains(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// Rank extracts the numeric rank embedded in a grade id ("G10" -> 10).
// The id must be a non-empty letter prefix followed by digits.
func Rank(id string) (int, bool) {
	digits := strings.TrimLeftFunc(id, func(r rune) bool {
		return (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z')
	})
	if digits == id || digits == "" {
		return 0, false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

func inRange(v float64) bool {
	return v >= MinPosition && v <= MaxPosition
}
