package charts

import (
	"sync"

	"smartrag-console/internal/domain"
)

// BrowserPlaceholder is shown for charts without a stored description.
const BrowserPlaceholder = "No description available."

// Entry is one chart in the aggregated session inventory, tied to the
// document it came from.
type Entry struct {
	Image       domain.ChartImage `json:"image"`
	Document    string            `json:"document"`
	Page        int               `json:"page"`
	Description string            `json:"description"`
}

// Browser maintains a cyclic navigation cursor over every chart across every
// document of the active session, regardless of whether an answer referenced
// it. The cursor stays valid whenever the inventory changes: it re-clamps to
// 0 rather than erroring.
type Browser struct {
	mu      sync.Mutex
	lister  Lister
	entries []Entry
	index   int
}

// NewBrowser creates an empty chart browser.
func NewBrowser(lister Lister) *Browser {
	return &Browser{lister: lister}
}

// Reload rebuilds the inventory from the session's documents, in session
// order, and re-clamps the cursor.
func (b *Browser) Reload(docs []domain.Document) {
	var entries []Entry
	for _, doc := range docs {
		descriptions := doc.Descriptions()
		for _, img := range b.lister.AllCharts(doc.ChartDir) {
			desc, ok := descriptions[img.Filename]
			if !ok {
				desc = BrowserPlaceholder
			}
			entries = append(entries, Entry{
				Image:       img,
				Document:    doc.OriginalFilename,
				Page:        ExtractPageNumber(img.Filename),
				Description: desc,
			})
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = entries
	if b.index >= len(entries) {
		b.index = 0
	}
}

// Total returns the aggregated chart count.
func (b *Browser) Total() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Current returns the entry at the cursor and its zero-based position.
// The bool is false when the inventory is empty.
func (b *Browser) Current() (Entry, int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.entries) == 0 {
		return Entry{}, 0, false
	}
	return b.entries[b.index], b.index, true
}

// Next advances the cursor cyclically. No-op with one chart or fewer.
func (b *Browser) Next() {
	b.step(1)
}

// Previous retreats the cursor cyclically. No-op with one chart or fewer.
func (b *Browser) Previous() {
	b.step(-1)
}

func (b *Browser) step(delta int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	total := len(b.entries)
	if total <= 1 {
		return
	}
	b.index = (b.index + delta + total) % total
}

// JumpTo moves the cursor to a one-based position, clamped into range.
// Jumping to the current position is a no-op.
func (b *Browser) JumpTo(oneBased int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	total := len(b.entries)
	if total == 0 {
		return
	}
	target := oneBased - 1
	if target < 0 {
		target = 0
	}
	if target >= total {
		target = total - 1
	}
	if target == b.index {
		return
	}
	b.index = target
}
