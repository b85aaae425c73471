// Package charts correlates query results with extracted chart images and
// drives the session-wide chart browser.
package charts

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"smartrag-console/internal/domain"
)

// Chart image filenames follow the extractor's canonical naming scheme
// page<N>_<slug>.<ext>, e.g. page3_chart1.png. Page extraction is
// best-effort: anything that does not match reports page 0.
var pagePattern = regexp.MustCompile(`(?i)^page(\d+)[_.-]`)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
}

// ExtractPageNumber parses the page number out of a chart image filename.
func ExtractPageNumber(filename string) int {
	m := pagePattern.FindStringSubmatch(filepath.Base(filename))
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

// Lister enumerates the chart images physically present on the shared
// volume. The backend writes them out-of-band during processing.
type Lister interface {
	AllCharts(chartDir string) []domain.ChartImage
	ChartsForPage(chartDir string, page int) []domain.ChartImage
}

// FSLister lists chart images straight off the filesystem.
type FSLister struct{}

// AllCharts returns every chart image in chartDir, in name order. A missing
// or unreadable directory yields an empty list.
func (FSLister) AllCharts(chartDir string) []domain.ChartImage {
	if chartDir == "" {
		return nil
	}
	entries, err := os.ReadDir(chartDir)
	if err != nil {
		return nil
	}
	var out []domain.ChartImage
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if !imageExtensions[ext] {
			continue
		}
		out = append(out, domain.ChartImage{Dir: chartDir, Filename: entry.Name()})
	}
	return out
}

// ChartsForPage returns the chart images extracted from one page.
func (l FSLister) ChartsForPage(chartDir string, page int) []domain.ChartImage {
	var out []domain.ChartImage
	for _, img := range l.AllCharts(chartDir) {
		if ExtractPageNumber(img.Filename) == page {
			out = append(out, img)
		}
	}
	return out
}
