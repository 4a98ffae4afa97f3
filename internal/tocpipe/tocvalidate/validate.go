// Package tocvalidate implements the Validator & Repairer (C5): checking
// whether resolved titles actually appear at their claimed physical page,
// repairing the items that don't, and deciding whether the result should
// be accepted, repaired, or the pipeline should fall back to a simpler
// mode.
package tocvalidate

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/jackzampolin/shelf/internal/tocpipe/llmclient"
	"github.com/jackzampolin/shelf/internal/tocpipe/pagegroup"
	"github.com/jackzampolin/shelf/internal/tocpipe/tocindex"
	"github.com/jackzampolin/shelf/internal/tocpipe/tocjson"
	"github.com/jackzampolin/shelf/internal/tocpipe/tocmodel"
)

// MaxRepairAttempts bounds fix_incorrect_toc_with_retries.
const MaxRepairAttempts = 3

// Decision is the control policy's verdict after batch verification.
type Decision int

const (
	DecisionAccept Decision = iota
	DecisionRepair
	DecisionFallback
)

// CheckTitleAppearance implements check_title_appearance for a single item.
// An item with no resolved PhysicalIndex is "no" without a model call.
func CheckTitleAppearance(ctx context.Context, client llmclient.Client, model string, item tocmodel.TocItem, pages tocmodel.Pages) (tocmodel.CheckResult, error) {
	result := tocmodel.CheckResult{ListIndex: item.ListIndex, Title: item.Title}

	if !item.HasPhysicalIndex() {
		result.Answer = tocmodel.AppearanceNo
		return result, nil
	}
	result.PhysicalIndex = *item.PhysicalIndex

	pageText := pageTextByIndex(pages, *item.PhysicalIndex)
	if pageText == "" {
		result.Answer = tocmodel.AppearanceNo
		return result, nil
	}

	text, _, err := client.CompleteWithFinish(ctx, llmclient.Request{
		Model:     model,
		Prompt:    buildAppearancePrompt(item.Title, pageText),
		PromptKey: AppearancePromptKey,
	})
	if err != nil {
		return result, fmt.Errorf("tocvalidate: appearance check failed for %q: %w", item.Title, err)
	}

	var resp struct {
		Answer string `json:"answer"`
	}
	if jsonErr := tocjson.ExtractInto(text, &resp); jsonErr != nil {
		result.Answer = tocmodel.AppearanceNo
		return result, nil
	}
	if resp.Answer == "yes" {
		result.Answer = tocmodel.AppearanceYes
	} else {
		result.Answer = tocmodel.AppearanceNo
	}
	return result, nil
}

// BatchVerify dispatches CheckTitleAppearance over every item concurrently
// and computes the resulting accuracy, per spec.md §4.5.
func BatchVerify(ctx context.Context, client llmclient.Client, model string, items []tocmodel.TocItem, pages tocmodel.Pages) ([]tocmodel.CheckResult, float64, error) {
	results := make([]tocmodel.CheckResult, len(items))

	g, gctx := errgroup.WithContext(ctx)
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			r, err := CheckTitleAppearance(gctx, client, model, item, pages)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	checked, correct := 0, 0
	maxPhysicalIndex := 0
	for i, r := range results {
		if !items[i].HasPhysicalIndex() {
			continue
		}
		checked++
		if r.Correct() {
			correct++
		}
		if r.PhysicalIndex > maxPhysicalIndex {
			maxPhysicalIndex = r.PhysicalIndex
		}
	}

	var accuracy float64
	if checked > 0 {
		accuracy = float64(correct) / float64(checked)
	}

	if len(pages) > 0 && maxPhysicalIndex < len(pages)/2 {
		accuracy = 0
	}

	return results, accuracy, nil
}

// IncorrectResults filters results whose answer is "no", restricted to
// items that were actually checked (non-null physical index).
func IncorrectResults(results []tocmodel.CheckResult, items []tocmodel.TocItem) []tocmodel.CheckResult {
	var incorrect []tocmodel.CheckResult
	for i, r := range results {
		if items[i].HasPhysicalIndex() && !r.Correct() {
			incorrect = append(incorrect, r)
		}
	}
	return incorrect
}

// Decide implements the control policy of spec.md §4.5.
func Decide(accuracy float64, incorrect []tocmodel.CheckResult) Decision {
	switch {
	case accuracy == 1.0 && len(incorrect) == 0:
		return DecisionAccept
	case accuracy > 0.6 && len(incorrect) > 0:
		return DecisionRepair
	default:
		return DecisionFallback
	}
}

// RepairLoop implements fix_incorrect_toc_with_retries: up to
// MaxRepairAttempts passes over the still-incorrect items, each time
// searching a window bounded by the nearest correct neighbors.
func RepairLoop(ctx context.Context, client llmclient.Client, model string, items []tocmodel.TocItem, incorrectListIndices map[int]bool, pages tocmodel.Pages) ([]tocmodel.TocItem, error) {
	result := make([]tocmodel.TocItem, len(items))
	copy(result, items)

	remaining := make(map[int]bool, len(incorrectListIndices))
	for k, v := range incorrectListIndices {
		remaining[k] = v
	}

	for attempt := 0; attempt < MaxRepairAttempts && len(remaining) > 0; attempt++ {
		for listIndex := range remaining {
			itemIdx := indexByListIndex(result, listIndex)
			if itemIdx < 0 {
				delete(remaining, listIndex)
				continue
			}
			item := result[itemIdx]

			lo := nearestCorrectBefore(result, itemIdx, remaining, pages[0].PhysicalIndex-1)
			hi := nearestCorrectAfter(result, itemIdx, remaining, pages[len(pages)-1].PhysicalIndex)

			window := sliceByPhysicalIndex(pages, lo+1, hi)
			if len(window) == 0 {
				continue
			}
			windowText := pagegroup.Window{Pages: window}.Text()

			newIdx, err := tocindex.SingleItemRepair(ctx, client, model, item.Title, windowText)
			if err != nil || newIdx == nil {
				continue
			}

			result[itemIdx].PhysicalIndex = newIdx
			check, checkErr := CheckTitleAppearance(ctx, client, model, result[itemIdx], pages)
			if checkErr != nil {
				continue
			}
			if check.Correct() {
				delete(remaining, listIndex)
			}
		}
	}

	return result, nil
}

func indexByListIndex(items []tocmodel.TocItem, listIndex int) int {
	for i, it := range items {
		if it.ListIndex == listIndex {
			return i
		}
	}
	return -1
}

func nearestCorrectBefore(items []tocmodel.TocItem, idx int, incorrect map[int]bool, fallback int) int {
	for i := idx - 1; i >= 0; i-- {
		if items[i].HasPhysicalIndex() && !incorrect[items[i].ListIndex] {
			return *items[i].PhysicalIndex
		}
	}
	return fallback
}

func nearestCorrectAfter(items []tocmodel.TocItem, idx int, incorrect map[int]bool, fallback int) int {
	for i := idx + 1; i < len(items); i++ {
		if items[i].HasPhysicalIndex() && !incorrect[items[i].ListIndex] {
			return *items[i].PhysicalIndex
		}
	}
	return fallback
}

// CheckAppearAtStart implements check_title_appearance_in_start, fanning
// out one task per item. Items with no resolved physical index are "no"
// without a model call.
func CheckAppearAtStart(ctx context.Context, client llmclient.Client, model string, items []tocmodel.TocItem, pages tocmodel.Pages) ([]tocmodel.TocItem, error) {
	result := make([]tocmodel.TocItem, len(items))
	copy(result, items)

	g, gctx := errgroup.WithContext(ctx)
	for i := range result {
		i := i
		g.Go(func() error {
			item := result[i]
			if !item.HasPhysicalIndex() {
				result[i].AppearStart = tocmodel.AppearanceNo
				return nil
			}

			pageText := pageTextByIndex(pages, *item.PhysicalIndex)
			if pageText == "" {
				result[i].AppearStart = tocmodel.AppearanceNo
				return nil
			}

			text, _, err := client.CompleteWithFinish(gctx, llmclient.Request{
				Model:     model,
				Prompt:    buildAppearAtStartPrompt(item.Title, pageText),
				PromptKey: AppearAtStartPromptKey,
			})
			if err != nil {
				return fmt.Errorf("tocvalidate: appear-at-start check failed for %q: %w", item.Title, err)
			}

			var resp struct {
				Answer string `json:"answer"`
			}
			if jsonErr := tocjson.ExtractInto(text, &resp); jsonErr != nil || resp.Answer != "yes" {
				result[i].AppearStart = tocmodel.AppearanceNo
				return nil
			}
			result[i].AppearStart = tocmodel.AppearanceYes
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return result, nil
}

func pageTextByIndex(pages tocmodel.Pages, physicalIndex int) string {
	for _, p := range pages {
		if p.PhysicalIndex == physicalIndex {
			return p.Text
		}
	}
	return ""
}

func sliceByPhysicalIndex(pages tocmodel.Pages, lo, hi int) tocmodel.Pages {
	var window tocmodel.Pages
	for _, p := range pages {
		if p.PhysicalIndex >= lo && p.PhysicalIndex <= hi {
			window = append(window, p)
		}
	}
	return window
}
