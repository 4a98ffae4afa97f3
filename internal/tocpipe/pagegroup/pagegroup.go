// Package pagegroup implements the Page Grouper (C1): packing pages into
// token-bounded, overlapping text windows suitable for a single LLM prompt.
package pagegroup

import (
	"fmt"
	"strings"

	"github.com/jackzampolin/shelf/internal/tocpipe/tocmodel"
)

// DefaultMaxTokens is the Page Grouper's default window token budget,
// also used as the subdivision token threshold (spec.md §6).
const DefaultMaxTokens = 20000

// DefaultOverlapPages is the default number of pages repeated between
// consecutive windows.
const DefaultOverlapPages = 1

// Options configures grouping.
type Options struct {
	MaxTokens    int // default DefaultMaxTokens
	OverlapPages int // DefaultOverlapPages when negative; 0 means no overlap
}

func (o Options) normalized() Options {
	if o.MaxTokens <= 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	if o.OverlapPages < 0 {
		o.OverlapPages = DefaultOverlapPages
	}
	return o
}

// Window is a contiguous, possibly-overlapping run of pages whose joined
// text fits within the configured token budget.
type Window struct {
	StartIndex int // PhysicalIndex of the first page in the window
	EndIndex   int // PhysicalIndex of the last page in the window
	Pages      tocmodel.Pages
}

// Text joins the window's pages, each wrapped so the model can cite page
// identities back to the caller (spec.md §4.1).
func (w Window) Text() string {
	var b strings.Builder
	for _, p := range w.Pages {
		b.WriteString(WrapPage(p))
	}
	return b.String()
}

// WrapPage renders a single page's text with its physical-index tags.
func WrapPage(p tocmodel.Page) string {
	return fmt.Sprintf("<physical_index_%d>\n%s\n<physical_index_%d>\n\n", p.PhysicalIndex, p.Text, p.PhysicalIndex)
}

// Group packs pages into windows per spec.md §4.1.
func Group(pages tocmodel.Pages, opts Options) []Window {
	opts = opts.normalized()
	if len(pages) == 0 {
		return nil
	}

	total := pages.TotalTokens()
	if total <= opts.MaxTokens {
		return []Window{{
			StartIndex: pages[0].PhysicalIndex,
			EndIndex:   pages[len(pages)-1].PhysicalIndex,
			Pages:      pages,
		}}
	}

	expectedParts := ceilDiv(total, opts.MaxTokens)
	avg := ceilDiv(total/expectedParts+opts.MaxTokens, 2)

	var windows []Window
	var current tocmodel.Pages
	currentTokens := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		windows = append(windows, Window{
			StartIndex: current[0].PhysicalIndex,
			EndIndex:   current[len(current)-1].PhysicalIndex,
			Pages:      current,
		})
	}

	i := 0
	for i < len(pages) {
		p := pages[i]
		if len(current) > 0 && currentTokens+p.TokenCount > avg {
			flush()
			// Start next window from max(i - overlap, 0), then proceed to add page i.
			restart := i - opts.OverlapPages
			if restart < 0 {
				restart = 0
			}
			current = nil
			currentTokens = 0
			for j := restart; j <= i; j++ {
				current = append(current, pages[j])
				currentTokens += pages[j].TokenCount
			}
			i++
			continue
		}
		current = append(current, p)
		currentTokens += p.TokenCount
		i++
	}
	flush()

	return windows
}

func ceilDiv(a, b int) int {
	if b == 0 {
		return a
	}
	if a%b == 0 {
		return a / b
	}
	return a/b + 1
}
