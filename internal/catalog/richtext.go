package catalog

import (
	"fmt"
	"strings"
)

const emphasisMarker = "**"

// Span is a run of text with uniform emphasis
type Span struct {
	Text   string `json:"text"`
	Strong bool   `json:"strong,omitempty"`
}

// RichText is descriptive text made of emphasized and plain spans
type RichText []Span

// ParseRichText converts "**bold** plain" markup into spans.
// Empty runs are dropped; an unbalanced marker is an error.
func ParseRichText(s string) (RichText, error) {
	parts := strings.Split(s, emphasisMarker)
	if len(parts)%2 == 0 {
		return nil, fmt.Errorf("unbalanced %q in %q", emphasisMarker, s)
	}

	text := make(RichText, 0, len(parts))
	for i, part := range parts {
		if part == "" {
			continue
		}
		text = append(text, Span{Text: part, Strong: i%2 == 1})
	}
	return text, nil
}

// String returns the text without emphasis
func (t RichText) String() string {
	var b strings.Builder
	for _, span := range t {
		b.WriteString(span.Text)
	}
	return b.String()
}

// Markup returns the text in its source "**bold**" form
func (t RichText) Markup() string {
	var b strings.Builder
	for _, span := range t {
		if span.Strong {
			b.WriteString(emphasisMarker)
			b.WriteString(span.Text)
			b.WriteString(emphasisMarker)
			continue
		}
		b.WriteString(span.Text)
	}
	return b.String()
}
