// Package tocindex implements the Index Resolver (C4): mapping ToC titles
// to physical page indices via offset fusion (mode A), windowed search
// (mode B), or single-item repair (used by both mode A's gap-filling and
// the validator's repair loop).
package tocindex

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"

	"github.com/jackzampolin/shelf/internal/tocpipe/llmclient"
	"github.com/jackzampolin/shelf/internal/tocpipe/pagegroup"
	"github.com/jackzampolin/shelf/internal/tocpipe/pipectx"
	"github.com/jackzampolin/shelf/internal/tocpipe/tocjson"
	"github.com/jackzampolin/shelf/internal/tocpipe/tocmodel"
)

var physicalIndexTagRe = regexp.MustCompile(`(\d+)`)

func parseTag(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		return int(t), true
	case string:
		m := physicalIndexTagRe.FindAllString(t, -1)
		if len(m) == 0 {
			return 0, false
		}
		n, err := strconv.Atoi(m[len(m)-1])
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// FuseOffsets implements mode A's offset-fusion index resolution.
//
// items is the transform() output (carrying printed Page, no
// PhysicalIndex); pages is the full page list; tocLastPage is the
// physical_index of the ToC's last page; tocCheckPages bounds the window
// searched for offset evidence.
func FuseOffsets(ctx context.Context, client llmclient.Client, model string, items []tocmodel.TocItem, pages tocmodel.Pages, tocLastPage, tocCheckPages int) ([]tocmodel.TocItem, error) {
	logger := pipectx.LoggerFrom(ctx)

	windowStart := tocLastPage + 1
	windowEnd := windowStart + tocCheckPages
	window := sliceByPhysicalIndex(pages, windowStart, windowEnd)
	windowText := pagegroup.Window{Pages: window}.Text()

	extractorItems := make([]extractorItem, 0, len(items))
	for i, it := range items {
		extractorItems = append(extractorItems, extractorItem{ListIndex: i, Title: it.Title, Page: it.Page})
	}

	matches, err := extractOffsetEvidence(ctx, client, model, extractorItems, windowText)
	if err != nil {
		return nil, fmt.Errorf("tocindex: offset extraction failed: %w", err)
	}

	offset, hasOffset := computeModeOffset(matches, items, windowStart)
	if !hasOffset {
		logger.Warn("tocindex: no offset evidence found in fusion window, leaving pages unresolved")
	}

	result := make([]tocmodel.TocItem, len(items))
	for i, it := range items {
		c := it.Clone()
		if hasOffset && c.Page != nil {
			resolved := *c.Page + offset
			c.PhysicalIndex = &resolved
			c.Page = nil
		}
		result[i] = c
	}

	return processNonePageNumbers(ctx, client, model, result, pages, tocCheckPages)
}

type offsetMatch struct {
	ListIndex     int
	PhysicalIndex int
}

func extractOffsetEvidence(ctx context.Context, client llmclient.Client, model string, items []extractorItem, windowText string) ([]offsetMatch, error) {
	text, _, err := client.CompleteWithFinish(ctx, llmclient.Request{
		Model:     model,
		Prompt:    buildExtractorPrompt(items, windowText),
		PromptKey: ExtractorPromptKey,
	})
	if err != nil {
		return nil, err
	}

	var raws []struct {
		ListIndex     int `json:"list_index"`
		PhysicalIndex any `json:"physical_index"`
	}
	if err := tocjson.ExtractInto(text, &raws); err != nil {
		return nil, err
	}

	matches := make([]offsetMatch, 0, len(raws))
	for _, r := range raws {
		if idx, ok := parseTag(r.PhysicalIndex); ok {
			matches = append(matches, offsetMatch{ListIndex: r.ListIndex, PhysicalIndex: idx})
		}
	}
	return matches, nil
}

// computeModeOffset computes the mode (most frequent value, ties broken by
// first-seen) of physical_index-minus-page across matches whose
// physical_index falls at or after windowStart.
func computeModeOffset(matches []offsetMatch, items []tocmodel.TocItem, windowStart int) (int, bool) {
	counts := make(map[int]int)
	firstSeenOrder := make([]int, 0)

	for _, m := range matches {
		if m.PhysicalIndex < windowStart {
			continue
		}
		if m.ListIndex < 0 || m.ListIndex >= len(items) {
			continue
		}
		page := items[m.ListIndex].Page
		if page == nil {
			continue
		}
		offset := m.PhysicalIndex - *page
		if _, seen := counts[offset]; !seen {
			firstSeenOrder = append(firstSeenOrder, offset)
		}
		counts[offset]++
	}

	if len(counts) == 0 {
		return 0, false
	}

	best := firstSeenOrder[0]
	bestCount := counts[best]
	for _, offset := range firstSeenOrder[1:] {
		if counts[offset] > bestCount {
			best = offset
			bestCount = counts[offset]
		}
	}
	return best, true
}

// processNonePageNumbers resolves items whose printed page was null by
// locating the nearest non-null physical_index on each side of the gap and
// searching the pages between them. The list is snapshotted before
// iterating (spec.md §9: the source mutates in place while iterating).
func processNonePageNumbers(ctx context.Context, client llmclient.Client, model string, items []tocmodel.TocItem, pages tocmodel.Pages, tocCheckPages int) ([]tocmodel.TocItem, error) {
	snapshot := make([]tocmodel.TocItem, len(items))
	copy(snapshot, items)

	result := make([]tocmodel.TocItem, len(items))
	copy(result, items)

	for i, it := range snapshot {
		if it.HasPhysicalIndex() || it.Page != nil {
			continue
		}

		lo := nearestResolvedBefore(snapshot, i, pages[0].PhysicalIndex-1)
		hi := nearestResolvedAfter(snapshot, i, pages[len(pages)-1].PhysicalIndex+1)
		if hi-lo > tocCheckPages*4 {
			hi = lo + tocCheckPages*4
		}

		window := sliceByPhysicalIndex(pages, lo+1, hi-1)
		if len(window) == 0 {
			continue
		}
		windowText := pagegroup.Window{Pages: window}.Text()

		idx, err := SingleItemRepair(ctx, client, model, it.Title, windowText)
		if err != nil {
			continue
		}
		if idx != nil {
			result[i].PhysicalIndex = idx
			result[i].Page = nil
		}
	}

	return result, nil
}

func nearestResolvedBefore(items []tocmodel.TocItem, idx int, fallback int) int {
	for i := idx - 1; i >= 0; i-- {
		if items[i].HasPhysicalIndex() {
			return *items[i].PhysicalIndex
		}
	}
	return fallback
}

func nearestResolvedAfter(items []tocmodel.TocItem, idx int, fallback int) int {
	for i := idx + 1; i < len(items); i++ {
		if items[i].HasPhysicalIndex() {
			return *items[i].PhysicalIndex
		}
	}
	return fallback
}

// ResolveModeB implements add_page_number_to_toc across the page-grouped
// windows of mode B: for each window, ask which pending titles start there.
// Windows are walked sequentially; earlier decisions are never revised.
func ResolveModeB(ctx context.Context, client llmclient.Client, model string, items []tocmodel.TocItem, windows []pagegroup.Window) ([]tocmodel.TocItem, error) {
	result := make([]tocmodel.TocItem, len(items))
	copy(result, items)

	for _, win := range windows {
		pending := pendingTitles(result)
		if len(pending) == 0 {
			break
		}

		resolved, err := addPageNumberWindow(ctx, client, model, pending, win.Text())
		if err != nil {
			return nil, fmt.Errorf("tocindex: add_page_number_to_toc failed on window [%d,%d]: %w", win.StartIndex, win.EndIndex, err)
		}

		for title, idx := range resolved {
			for i := range result {
				if result[i].Title == title && !result[i].HasPhysicalIndex() {
					v := idx
					result[i].PhysicalIndex = &v
					break
				}
			}
		}
	}

	return result, nil
}

func pendingTitles(items []tocmodel.TocItem) []string {
	var titles []string
	for _, it := range items {
		if !it.HasPhysicalIndex() {
			titles = append(titles, it.Title)
		}
	}
	return titles
}

func addPageNumberWindow(ctx context.Context, client llmclient.Client, model string, pending []string, windowText string) (map[string]int, error) {
	text, _, err := client.CompleteWithFinish(ctx, llmclient.Request{
		Model:     model,
		Prompt:    buildAddPageNumberPrompt(pending, windowText),
		PromptKey: AddPageNumberPromptKey,
	})
	if err != nil {
		return nil, err
	}

	var raws []struct {
		Title         string `json:"title"`
		PhysicalIndex any    `json:"physical_index"`
	}
	if err := tocjson.ExtractInto(text, &raws); err != nil {
		return nil, err
	}

	resolved := make(map[string]int, len(raws))
	for _, r := range raws {
		if idx, ok := parseTag(r.PhysicalIndex); ok {
			resolved[r.Title] = idx
		}
	}
	return resolved, nil
}

// SingleItemRepair asks the LLM to name the physical_index where title
// starts within windowText. Returns nil without error if the model reports
// the title cannot be located.
func SingleItemRepair(ctx context.Context, client llmclient.Client, model, title, windowText string) (*int, error) {
	text, _, err := client.CompleteWithFinish(ctx, llmclient.Request{
		Model:     model,
		Prompt:    buildSingleRepairPrompt(title, windowText),
		PromptKey: SingleRepairPromptKey,
	})
	if err != nil {
		return nil, err
	}

	var resp struct {
		PhysicalIndex any `json:"physical_index"`
	}
	if err := tocjson.ExtractInto(text, &resp); err != nil {
		return nil, err
	}

	idx, ok := parseTag(resp.PhysicalIndex)
	if !ok {
		return nil, nil
	}
	return &idx, nil
}

// sliceByPhysicalIndex returns the contiguous run of pages with
// PhysicalIndex in [lo, hi], assuming pages is sorted ascending.
func sliceByPhysicalIndex(pages tocmodel.Pages, lo, hi int) tocmodel.Pages {
	start := sort.Search(len(pages), func(i int) bool { return pages[i].PhysicalIndex >= lo })
	end := start
	for end < len(pages) && pages[end].PhysicalIndex <= hi {
		end++
	}
	if start >= end {
		return nil
	}
	return pages[start:end]
}
