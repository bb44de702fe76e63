// Package viewmodel projects a grade selection into renderable structures.
//
// Everything here is a pure function of the catalog and the selected ids:
// identical inputs produce identical output.
package viewmodel

import (
	"fmt"

	"github.com/terra-clan/grade-compass/internal/catalog"
)

// Axis identifies one of the two visual scales
type Axis string

const (
	AxisScope       Axis = "scope"
	AxisProficiency Axis = "proficiency"
)

// Valid reports whether a is a known axis
func (a Axis) Valid() bool {
	return a == AxisScope || a == AxisProficiency
}

// Dimension identifies a comparison row
type Dimension string

const (
	DimensionRole          Dimension = "role"
	DimensionArtifacts     Dimension = "artifacts"
	DimensionCollaborators Dimension = "collaborators"
)

// Scale describes how an axis is drawn
type Scale struct {
	Axis   Axis     `json:"axis"`
	Title  string   `json:"title"`
	Labels []string `json:"labels"` // evenly spaced, left to right
}

var scales = []Scale{
	{
		Axis:   AxisScope,
		Title:  "Scope & Impact",
		Labels: []string{"Tactical", "Strategic", "Innovative", "Transformative"},
	},
	{
		Axis:   AxisProficiency,
		Title:  "UX Core Proficiency",
		Labels: []string{"Emergent", "Competent", "Proficient", "Advanced", "Expert"},
	},
}

// Scales returns both scale definitions in display order
func Scales() []Scale {
	result := make([]Scale, len(scales))
	for i, s := range scales {
		result[i] = Scale{Axis: s.Axis, Title: s.Title, Labels: append([]string(nil), s.Labels...)}
	}
	return result
}

// Marker is one grade placed on a scale.
// Lane separates markers that share a position; Position is never adjusted.
type Marker struct {
	GradeID    string        `json:"grade_id"`
	ShortLabel string        `json:"short_label"`
	Position   float64       `json:"position"`
	Lane       int           `json:"lane"`
	Style      catalog.Style `json:"style"`
}

// Cell is one grade's entry in a comparison row.
// Text is set for rich-text rows, Tags for the collaborators row.
type Cell struct {
	GradeID string           `json:"grade_id"`
	Text    catalog.RichText `json:"text,omitempty"`
	Tags    []string         `json:"tags,omitempty"`
}

// Row is one comparison dimension across all selected grades
type Row struct {
	Dimension Dimension `json:"dimension"`
	Title     string    `json:"title"`
	Cells     []Cell    `json:"cells"`
}

// View is the derived projection of one selection
type View struct {
	records []*catalog.Grade
}

// Build resolves the selected ids against the catalog.
// ids must already be in canonical order; it is preserved.
func Build(cat *catalog.Catalog, ids []string) (*View, error) {
	records := make([]*catalog.Grade, 0, len(ids))
	for _, id := range ids {
		g, err := cat.Lookup(id)
		if err != nil {
			return nil, fmt.Errorf("failed to build view: %w", err)
		}
		records = append(records, g)
	}
	return &View{records: records}, nil
}

// SelectedRecords returns the selected grades in selection order
func (v *View) SelectedRecords() []*catalog.Grade {
	result := make([]*catalog.Grade, len(v.records))
	copy(result, v.records)
	return result
}

// IDs returns the selected grade ids
func (v *View) IDs() []string {
	ids := make([]string, len(v.records))
	for i, g := range v.records {
		ids[i] = g.ID
	}
	return ids
}

// Empty reports whether nothing is selected
func (v *View) Empty() bool {
	return len(v.records) == 0
}

// ScalePositions returns each selected grade's position on axis
func (v *View) ScalePositions(axis Axis) []float64 {
	if !axis.Valid() {
		return nil
	}
	positions := make([]float64, len(v.records))
	for i, g := range v.records {
		positions[i] = position(g, axis)
	}
	return positions
}

// Markers places the selected grades on axis.
// Markers sharing an exact position get increasing lanes in selection order.
func (v *View) Markers(axis Axis) []Marker {
	if !axis.Valid() {
		return nil
	}
	markers := make([]Marker, len(v.records))
	taken := make(map[float64]int, len(v.records))
	for i, g := range v.records {
		pos := position(g, axis)
		markers[i] = Marker{
			GradeID:    g.ID,
			ShortLabel: g.ShortLabel,
			Position:   pos,
			Lane:       taken[pos],
			Style:      g.Style,
		}
		taken[pos]++
	}
	return markers
}

// ComparisonRows returns the Role, Artifacts and Collaborators rows
func (v *View) ComparisonRows() []Row {
	role := Row{Dimension: DimensionRole, Title: "Primary Role", Cells: make([]Cell, 0, len(v.records))}
	artifacts := Row{Dimension: DimensionArtifacts, Title: "Artifacts", Cells: make([]Cell, 0, len(v.records))}
	partners := Row{Dimension: DimensionCollaborators, Title: "Product Partners", Cells: make([]Cell, 0, len(v.records))}

	for _, g := range v.records {
		role.Cells = append(role.Cells, Cell{GradeID: g.ID, Text: g.Role})
		artifacts.Cells = append(artifacts.Cells, Cell{GradeID: g.ID, Text: g.Artifacts})
		partners.Cells = append(partners.Cells, Cell{GradeID: g.ID, Tags: append([]string(nil), g.Partners...)})
	}

	return []Row{role, artifacts, partners}
}

func position(g *catalog.Grade, axis Axis) float64 {
	if axis == AxisProficiency {
		return g.ProficiencyPosition
	}
	return g.ScopePosition
}

// ScaleView is a scale with its markers for the current selection
type ScaleView struct {
	Scale
	Markers []Marker `json:"markers"`
}

// Snapshot is the serializable form of a View
type Snapshot struct {
	Selection []string         `json:"selection"`
	Grades    []*catalog.Grade `json:"grades"`
	Scales    []ScaleView      `json:"scales"`
	Rows      []Row            `json:"rows"`
	Empty     bool             `json:"empty"`
}

// Snapshot collects every derived structure of v
func (v *View) Snapshot() Snapshot {
	scaleViews := make([]ScaleView, 0, len(scales))
	for _, s := range Scales() {
		scaleViews = append(scaleViews, ScaleView{Scale: s, Markers: v.Markers(s.Axis)})
	}
	return Snapshot{
		Selection: v.IDs(),
		Grades:    v.SelectedRecords(),
		Scales:    scaleViews,
		Rows:      v.ComparisonRows(),
		Empty:     v.Empty(),
	}
}
