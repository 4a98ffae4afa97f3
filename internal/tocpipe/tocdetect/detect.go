// Package tocdetect implements the TOC Detector (C2): locating the pages
// that form a table of contents and classifying whether it carries printed
// page numbers.
package tocdetect

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackzampolin/shelf/internal/tocpipe/llmclient"
	"github.com/jackzampolin/shelf/internal/tocpipe/pipectx"
	"github.com/jackzampolin/shelf/internal/tocpipe/tocjson"
	"github.com/jackzampolin/shelf/internal/tocpipe/tocmodel"
)

// DefaultTocCheckPages is the upper bound on pages scanned for a TOC.
const DefaultTocCheckPages = 20

// Classification is the outcome of phase 2 classification.
type Classification struct {
	TocContent        string
	TocPageList       []int
	PageIndexGivenInToc bool
}

type pageCheckResponse struct {
	IsToc string `json:"is_toc"`
}

type modeCheckResponse struct {
	PageIndexGivenInToc string `json:"page_index_given_in_toc"`
}

// LocateTocPages implements phase 1 of spec.md §4.2: scanning from the
// first page for a run of TOC pages.
func LocateTocPages(ctx context.Context, client llmclient.Client, model string, pages tocmodel.Pages, tocCheckPages int) ([]int, error) {
	if tocCheckPages <= 0 {
		tocCheckPages = DefaultTocCheckPages
	}
	logger := pipectx.LoggerFrom(ctx)

	var tocPages []int
	lastWasYes := false

	for i := 0; i < len(pages); i++ {
		page := pages[i]

		text, _, err := client.CompleteWithFinish(ctx, llmclient.Request{
			Model:     model,
			Prompt:    buildPageCheckPrompt(page.Text),
			PromptKey: PageCheckPromptKey,
		})
		if err != nil {
			return nil, fmt.Errorf("tocdetect: page check failed at physical_index %d: %w", page.PhysicalIndex, err)
		}

		var resp pageCheckResponse
		if jsonErr := tocjson.ExtractInto(text, &resp); jsonErr != nil {
			logger.Warn("tocdetect: unparsable page check response, treating as no",
				"physical_index", page.PhysicalIndex, "error", jsonErr)
			resp.IsToc = "no"
		}

		isYes := resp.IsToc == "yes"

		if !isYes && lastWasYes {
			// a "no" after a "yes": the TOC run ended.
			break
		}
		if isYes {
			tocPages = append(tocPages, page.PhysicalIndex)
		}
		lastWasYes = isYes

		if !lastWasYes && i >= tocCheckPages {
			break
		}
	}

	return tocPages, nil
}

var dotRunRe = regexp.MustCompile(`(\.{5,}|(?:\. ){5,}\.?)`)

// CollapseDotLeaders collapses runs of leader dots (or ". " sequences of
// length >= 5) into ": ", per spec.md §4.2.
func CollapseDotLeaders(text string) string {
	return dotRunRe.ReplaceAllString(text, ": ")
}

// Classify implements phase 2 of spec.md §4.2: deciding whether the TOC
// carries printed page numbers, and if not, searching further into the
// document for a region that does.
func Classify(ctx context.Context, client llmclient.Client, model string, pages tocmodel.Pages, tocPageIndices []int, tocCheckPages int) (Classification, error) {
	if len(tocPageIndices) == 0 {
		return Classification{PageIndexGivenInToc: false}, nil
	}

	content := concatPages(pages, tocPageIndices)
	collapsed := CollapseDotLeaders(content)

	given, err := classifyContent(ctx, client, model, collapsed)
	if err != nil {
		return Classification{}, err
	}

	if given {
		return Classification{TocContent: collapsed, TocPageList: tocPageIndices, PageIndexGivenInToc: true}, nil
	}

	// Search further into the document for an additional TOC region that
	// does carry numbers.
	if tocCheckPages <= 0 {
		tocCheckPages = DefaultTocCheckPages
	}
	lastTocPage := tocPageIndices[len(tocPageIndices)-1]
	searchStart := indexOfPhysicalIndex(pages, lastTocPage) + 1
	searchEnd := searchStart + tocCheckPages
	if searchEnd > len(pages) {
		searchEnd = len(pages)
	}

	if searchStart < searchEnd {
		extra, extraErr := LocateTocPages(ctx, client, model, pages[searchStart:searchEnd], tocCheckPages)
		if extraErr == nil && len(extra) > 0 {
			extraContent := CollapseDotLeaders(concatPages(pages, extra))
			extraGiven, classifyErr := classifyContent(ctx, client, model, extraContent)
			if classifyErr == nil && extraGiven {
				return Classification{TocContent: extraContent, TocPageList: extra, PageIndexGivenInToc: true}, nil
			}
		}
	}

	return Classification{TocContent: collapsed, TocPageList: tocPageIndices, PageIndexGivenInToc: false}, nil
}

func classifyContent(ctx context.Context, client llmclient.Client, model, content string) (bool, error) {
	text, _, err := client.CompleteWithFinish(ctx, llmclient.Request{
		Model:     model,
		Prompt:    buildModeCheckPrompt(content),
		PromptKey: ModeCheckPromptKey,
	})
	if err != nil {
		return false, fmt.Errorf("tocdetect: mode check failed: %w", err)
	}
	var resp modeCheckResponse
	if jsonErr := tocjson.ExtractInto(text, &resp); jsonErr != nil {
		return false, nil
	}
	return resp.PageIndexGivenInToc == "yes", nil
}

func concatPages(pages tocmodel.Pages, indices []int) string {
	var b strings.Builder
	for _, idx := range indices {
		if p := pageByIndex(pages, idx); p != nil {
			b.WriteString(p.Text)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func pageByIndex(pages tocmodel.Pages, physicalIndex int) *tocmodel.Page {
	for i := range pages {
		if pages[i].PhysicalIndex == physicalIndex {
			return &pages[i]
		}
	}
	return nil
}

func indexOfPhysicalIndex(pages tocmodel.Pages, physicalIndex int) int {
	for i := range pages {
		if pages[i].PhysicalIndex == physicalIndex {
			return i
		}
	}
	return len(pages)
}
