// Package tocpipeline sequences the six components (C1-C6) into the
// mode A -> B -> C state machine described by this repository's table of
// contents discovery design: detect, structure, index, validate, and
// build the output tree, falling back to a simpler extraction strategy
// whenever validation accuracy is too low, and recursively re-running
// mode C on any node that grows past its size threshold.
package tocpipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackzampolin/shelf/internal/tocpipe/llmclient"
	"github.com/jackzampolin/shelf/internal/tocpipe/pagegroup"
	"github.com/jackzampolin/shelf/internal/tocpipe/pipectx"
	"github.com/jackzampolin/shelf/internal/tocpipe/tocdetect"
	"github.com/jackzampolin/shelf/internal/tocpipe/tocerrors"
	"github.com/jackzampolin/shelf/internal/tocpipe/tocindex"
	"github.com/jackzampolin/shelf/internal/tocpipe/tocmodel"
	"github.com/jackzampolin/shelf/internal/tocpipe/tocstruct"
	"github.com/jackzampolin/shelf/internal/tocpipe/toctree"
	"github.com/jackzampolin/shelf/internal/tocpipe/tocvalidate"
)

// Config holds the per-run tunables of spec.md §6's configuration table.
type Config struct {
	Model            string
	TocCheckPages    int // default 20
	MaxPagesPerNode  int // default 10
	MaxTokensPerNode int // default 20000
	OverlapPages     int // default 1
}

func (c Config) normalized() Config {
	if c.TocCheckPages <= 0 {
		c.TocCheckPages = tocdetect.DefaultTocCheckPages
	}
	if c.MaxPagesPerNode <= 0 {
		c.MaxPagesPerNode = 10
	}
	if c.MaxTokensPerNode <= 0 {
		c.MaxTokensPerNode = pagegroup.DefaultMaxTokens
	}
	if c.OverlapPages <= 0 {
		c.OverlapPages = pagegroup.DefaultOverlapPages
	}
	return c
}

// Run executes the full discovery pipeline over pages and returns the
// doc_name-tagged result envelope of spec.md §6.
func Run(ctx context.Context, client llmclient.Client, docName string, pages tocmodel.Pages, cfg Config) (*tocmodel.PipelineResult, error) {
	cfg = cfg.normalized()
	if len(pages) == 0 {
		return nil, tocerrors.ErrEmptyDocument
	}

	logger := pipectx.LoggerFrom(ctx)

	tocPageIndices, err := tocdetect.LocateTocPages(ctx, client, cfg.Model, pages, cfg.TocCheckPages)
	if err != nil {
		return nil, fmt.Errorf("tocpipeline: toc detection failed: %w", err)
	}

	classification, err := tocdetect.Classify(ctx, client, cfg.Model, pages, tocPageIndices, cfg.TocCheckPages)
	if err != nil {
		return nil, fmt.Errorf("tocpipeline: toc classification failed: %w", err)
	}

	mode := selectInitialMode(classification)

	var items []tocmodel.TocItem
	for {
		items, err = runMode(ctx, client, cfg, mode, classification, pages)
		if err != nil {
			return nil, fmt.Errorf("tocpipeline: mode %s failed: %w", mode, err)
		}

		items = clampOutOfDocument(items, pages, logger)

		results, accuracy, verifyErr := tocvalidate.BatchVerify(ctx, client, cfg.Model, items, pages)
		if verifyErr != nil {
			return nil, fmt.Errorf("tocpipeline: validation failed in mode %s: %w", mode, verifyErr)
		}
		incorrect := tocvalidate.IncorrectResults(results, items)

		switch tocvalidate.Decide(accuracy, incorrect) {
		case tocvalidate.DecisionAccept:
			items = dropUnresolved(items)
			goto buildTree

		case tocvalidate.DecisionRepair:
			incorrectSet := make(map[int]bool, len(incorrect))
			for _, r := range incorrect {
				incorrectSet[r.ListIndex] = true
			}
			repaired, repairErr := tocvalidate.RepairLoop(ctx, client, cfg.Model, items, incorrectSet, pages)
			if repairErr != nil {
				return nil, fmt.Errorf("tocpipeline: repair loop failed in mode %s: %w", mode, repairErr)
			}
			items = dropUnresolved(repaired)
			goto buildTree

		default: // DecisionFallback
			next, ok := mode.Next()
			logger.Warn("tocpipeline: validation accuracy too low, falling back",
				"mode", mode, "accuracy", accuracy, "next_mode", next)
			if !ok {
				return nil, tocerrors.ErrNoToCDetected
			}
			mode = next
		}
	}

buildTree:
	items, err = tocvalidate.CheckAppearAtStart(ctx, client, cfg.Model, items, pages)
	if err != nil {
		return nil, fmt.Errorf("tocpipeline: appear-at-start check failed: %w", err)
	}

	items = toctree.InsertPreface(items)
	ranged := toctree.AssignRanges(items, pages[len(pages)-1].PhysicalIndex)
	ranged, excludedRanges := toctree.DetectExcluded(ranged)
	nodes := toctree.BuildTree(ranged)

	runner := func(ctx context.Context, slice tocmodel.Pages) ([]*tocmodel.Node, error) {
		return runModeCSubtree(ctx, client, cfg, slice)
	}
	if subErr := toctree.Subdivide(ctx, nodes, pages, toctree.SubdivideOptions{
		MaxPagesPerNode:  cfg.MaxPagesPerNode,
		MaxTokensPerNode: cfg.MaxTokensPerNode,
	}, runner); subErr != nil {
		return nil, fmt.Errorf("tocpipeline: subdivision failed: %w", subErr)
	}

	return &tocmodel.PipelineResult{
		DocName:        docName,
		Structure:      nodes,
		ExcludedRanges: excludedRanges,
	}, nil
}

func selectInitialMode(c tocdetect.Classification) tocmodel.Mode {
	if c.TocContent == "" {
		return tocmodel.ModeC
	}
	if c.PageIndexGivenInToc {
		return tocmodel.ModeA
	}
	return tocmodel.ModeB
}

func runMode(ctx context.Context, client llmclient.Client, cfg Config, mode tocmodel.Mode, classification tocdetect.Classification, pages tocmodel.Pages) ([]tocmodel.TocItem, error) {
	switch mode {
	case tocmodel.ModeA:
		items, err := tocstruct.Transform(ctx, client, cfg.Model, classification.TocContent)
		if err != nil {
			return nil, err
		}
		lastTocPage := 0
		if len(classification.TocPageList) > 0 {
			lastTocPage = classification.TocPageList[len(classification.TocPageList)-1]
		}
		return tocindex.FuseOffsets(ctx, client, cfg.Model, items, pages, lastTocPage, cfg.TocCheckPages)

	case tocmodel.ModeB:
		items, err := tocstruct.Transform(ctx, client, cfg.Model, classification.TocContent)
		if err != nil {
			return nil, err
		}
		for i := range items {
			items[i].Page = nil
		}
		windows := pagegroup.Group(pages, pagegroup.Options{MaxTokens: cfg.MaxTokensPerNode, OverlapPages: cfg.OverlapPages})
		return tocindex.ResolveModeB(ctx, client, cfg.Model, items, windows)

	default: // ModeC
		return runModeC(ctx, client, cfg, pages)
	}
}

// runModeC implements mode C's generate_init/generate_continue chain over
// the page-grouped windows of the given page range.
func runModeC(ctx context.Context, client llmclient.Client, cfg Config, pages tocmodel.Pages) ([]tocmodel.TocItem, error) {
	windows := pagegroup.Group(pages, pagegroup.Options{MaxTokens: cfg.MaxTokensPerNode, OverlapPages: cfg.OverlapPages})
	if len(windows) == 0 {
		return nil, nil
	}

	items, err := tocstruct.GenerateInit(ctx, client, cfg.Model, windows[0].Text())
	if err != nil {
		return nil, err
	}

	for _, win := range windows[1:] {
		more, contErr := tocstruct.GenerateContinue(ctx, client, cfg.Model, items, win.Text())
		if contErr != nil {
			return nil, contErr
		}
		items = append(items, more...)
	}

	return items, nil
}

// runModeCSubtree implements the recursive-subdivision callback: mode C,
// the appear-at-start check, and tree assembly over one bounded page
// slice, with no mode fallback (spec.md §4.6 names only mode C for
// re-expansion). The generated items are not title-verified: no
// BatchVerify pass and no repair loop run here.
func runModeCSubtree(ctx context.Context, client llmclient.Client, cfg Config, slice tocmodel.Pages) ([]*tocmodel.Node, error) {
	if len(slice) == 0 {
		return nil, nil
	}

	items, err := runModeC(ctx, client, cfg, slice)
	if err != nil {
		return nil, err
	}
	items = clampOutOfDocument(items, slice, pipectx.LoggerFrom(ctx))

	items, err = tocvalidate.CheckAppearAtStart(ctx, client, cfg.Model, items, slice)
	if err != nil {
		return nil, err
	}

	items = dropUnresolved(items)
	ranged := toctree.AssignRanges(items, slice[len(slice)-1].PhysicalIndex)
	return toctree.BuildTree(ranged), nil
}

// clampOutOfDocument nulls any physical_index beyond the page range,
// per spec.md §7 ("out-of-document indices").
func clampOutOfDocument(items []tocmodel.TocItem, pages tocmodel.Pages, logger *slog.Logger) []tocmodel.TocItem {
	if len(pages) == 0 {
		return items
	}
	maxIdx := pages[len(pages)-1].PhysicalIndex

	for i := range items {
		if items[i].PhysicalIndex != nil && *items[i].PhysicalIndex > maxIdx {
			logger.Warn("tocpipeline: out-of-document physical_index nulled",
				"title", items[i].Title, "physical_index", *items[i].PhysicalIndex, "page_count", maxIdx)
			items[i].PhysicalIndex = nil
		}
	}
	return items
}

func dropUnresolved(items []tocmodel.TocItem) []tocmodel.TocItem {
	out := make([]tocmodel.TocItem, 0, len(items))
	for _, it := range items {
		if it.HasPhysicalIndex() {
			out = append(out, it)
		}
	}
	return out
}
