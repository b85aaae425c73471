package charts

import (
	"fmt"
	"strings"

	"smartrag-console/internal/domain"
)

// Passages that reference an extracted visual carry one of these marker
// tokens, injected by the backend's vision pipeline.
var visualMarkers = []string{
	"[CHART DESCRIPTION",
	"[SLIDE VISUAL DESCRIPTION",
}

// DescriptionPlaceholder is shown when no document can describe a chart.
const DescriptionPlaceholder = "Chart from document"

// ResolvedChart is one displayable chart with its resolved description.
type ResolvedChart struct {
	Image       domain.ChartImage `json:"image"`
	Description string            `json:"description"`
}

// SourceView is one query result prepared for display: bare source name and
// a relevance percentage when the score parsed as a number.
type SourceView struct {
	Index     int     `json:"index"`
	Source    string  `json:"source"`
	Page      int     `json:"page"`
	Text      string  `json:"text"`
	Relevance float64 `json:"relevance,omitempty"`
	Scored    bool    `json:"scored"`
}

// Label renders the source header line.
func (s SourceView) Label() string {
	base := fmt.Sprintf("Source %d (from %s - Page %d)", s.Index, s.Source, s.Page)
	if !s.Scored {
		return base
	}
	return fmt.Sprintf("%s - Relevance: %.1f%%", base, s.Relevance)
}

// Correlation is the displayable view of one interaction's result set.
type Correlation struct {
	Charts  []ResolvedChart `json:"charts"`
	Sources []SourceView    `json:"sources"`
}

// Correlate computes the deduplicated chart set relevant to one answer. For
// each result carrying a visual marker it lists the charts present for that
// result's page in every document's chart directory, dedupes by identity in
// first-seen order, and resolves each description by scanning the documents
// in session order. Pure: session state is never touched.
func Correlate(docs []domain.Document, results []domain.QueryResult, lister Lister) Correlation {
	var matched []domain.ChartImage
	for _, doc := range docs {
		if doc.ChartDir == "" {
			continue
		}
		for _, result := range results {
			if !referencesVisual(result.Text) {
				continue
			}
			matched = append(matched, lister.ChartsForPage(doc.ChartDir, result.Page)...)
		}
	}

	// Insertion-order dedupe; display order is first-seen, not re-sorted.
	seen := make(map[string]bool, len(matched))
	var charts []ResolvedChart
	for _, img := range matched {
		key := img.Path()
		if seen[key] {
			continue
		}
		seen[key] = true
		charts = append(charts, ResolvedChart{
			Image:       img,
			Description: describeChart(docs, img.Filename),
		})
	}

	sources := make([]SourceView, 0, len(results))
	for i, result := range results {
		view := SourceView{
			Index:  i + 1,
			Source: result.SourceName(),
			Page:   result.Page,
			Text:   result.Text,
		}
		if rel, ok := result.Score.Relevance(); ok {
			view.Relevance = rel
			view.Scored = true
		}
		sources = append(sources, view)
	}

	return Correlation{Charts: charts, Sources: sources}
}

func referencesVisual(text string) bool {
	for _, marker := range visualMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// describeChart returns the first description any document has for the
// filename, scanning in session order.
func describeChart(docs []domain.Document, filename string) string {
	for _, doc := range docs {
		if desc, ok := doc.Descriptions()[filename]; ok {
			return desc
		}
	}
	return DescriptionPlaceholder
}
