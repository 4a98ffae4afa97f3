// Package toctree implements the Tree Builder & Recursive Subdivider (C6):
// turning a flat, index-resolved ToC item list into the hierarchical output
// tree, and recursively re-running discovery on oversized nodes.
package toctree

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/jackzampolin/shelf/internal/tocpipe/pipectx"
	"github.com/jackzampolin/shelf/internal/tocpipe/tocmodel"
)

// PrefaceTitle is the synthetic section inserted ahead of a ToC whose
// first item doesn't start on page 1.
const PrefaceTitle = "Preface"

// InsertPreface prepends a synthetic Preface item when the first item's
// physical index is beyond page 1. items must already be sorted by
// ListIndex/appearance order.
func InsertPreface(items []tocmodel.TocItem) []tocmodel.TocItem {
	if len(items) == 0 {
		return items
	}
	first := items[0]
	if !first.HasPhysicalIndex() || *first.PhysicalIndex <= 1 {
		return items
	}

	one := 1
	preface := tocmodel.TocItem{
		Structure:     "0",
		Title:         PrefaceTitle,
		PhysicalIndex: &one,
		AppearStart:   tocmodel.AppearanceYes,
	}

	out := make([]tocmodel.TocItem, 0, len(items)+1)
	out = append(out, preface)
	out = append(out, items...)
	return out
}

// RangedItem pairs a ToC item with its assigned page span.
type RangedItem struct {
	Item       tocmodel.TocItem
	StartIndex int
	EndIndex   int
}

// AssignRanges implements spec.md §4.6's range-assignment rule: each item's
// span runs from its own physical index to just before the next item's
// (unless the next item's appear_start is not "yes", in which case the
// span also includes the next item's first page).
func AssignRanges(items []tocmodel.TocItem, totalPageCount int) []RangedItem {
	resolved := make([]tocmodel.TocItem, 0, len(items))
	for _, it := range items {
		if it.HasPhysicalIndex() {
			resolved = append(resolved, it)
		}
	}
	if len(resolved) == 0 {
		return nil
	}

	ranged := make([]RangedItem, len(resolved))
	for i, it := range resolved {
		start := *it.PhysicalIndex
		var end int
		if i == len(resolved)-1 {
			end = totalPageCount
		} else {
			next := resolved[i+1]
			if next.AppearStart == tocmodel.AppearanceYes {
				end = *next.PhysicalIndex - 1
			} else {
				end = *next.PhysicalIndex
			}
		}
		ranged[i] = RangedItem{Item: it, StartIndex: start, EndIndex: end}
	}
	return ranged
}

// excludedTitlePattern matches root-level back-matter sections that
// traditionally run to the end of a document and gain nothing from
// being folded into the content tree.
var excludedTitlePattern = regexp.MustCompile(`(?i)^(index|bibliography|glossary|appendix)\b`)

// DetectExcluded splits ranged into the items BuildTree should assemble and
// any root-level back-matter items (index, bibliography, glossary,
// appendix) that are reported separately instead, so that recursive
// subdivision can never split one across sibling nodes.
func DetectExcluded(ranged []RangedItem) (kept []RangedItem, excluded []tocmodel.ExcludedRange) {
	kept = make([]RangedItem, 0, len(ranged))
	for _, r := range ranged {
		if r.Item.ParentStructure() == "" && excludedTitlePattern.MatchString(strings.TrimSpace(r.Item.Title)) {
			excluded = append(excluded, tocmodel.ExcludedRange{
				Title:      r.Item.Title,
				StartIndex: r.StartIndex,
				EndIndex:   r.EndIndex,
			})
			continue
		}
		kept = append(kept, r)
	}
	return kept, excluded
}

// BuildTree implements tree assembly by dotted-structure parent lookup. If
// no item's structure yields a parent-child edge, the flat list is
// returned instead (appear_start and physical_index stripped from the
// emitted nodes, per spec.md §4.6).
func BuildTree(ranged []RangedItem) []*tocmodel.Node {
	if len(ranged) == 0 {
		return nil
	}

	byStructure := make(map[string]*tocmodel.Node, len(ranged))
	nodeOrder := make([]*tocmodel.Node, len(ranged))
	structureOf := make(map[*tocmodel.Node]string, len(ranged))

	for i, r := range ranged {
		n := &tocmodel.Node{
			Title:      r.Item.Title,
			StartIndex: r.StartIndex,
			EndIndex:   r.EndIndex,
		}
		nodeOrder[i] = n
		if r.Item.Structure != "" {
			byStructure[r.Item.Structure] = n
			structureOf[n] = r.Item.Structure
		}
	}

	hasEdge := false
	var roots []*tocmodel.Node

	for i, r := range ranged {
		n := nodeOrder[i]
		parentKey := r.Item.ParentStructure()
		if parentKey == "" {
			roots = append(roots, n)
			continue
		}
		parent, ok := byStructure[parentKey]
		if !ok {
			roots = append(roots, n)
			continue
		}
		parent.Nodes = append(parent.Nodes, n)
		hasEdge = true
	}

	if !hasEdge {
		flat := make([]*tocmodel.Node, len(nodeOrder))
		copy(flat, nodeOrder)
		return flat
	}

	return roots
}

// ModeCRunner re-runs mode C and tree assembly over a bounded page range,
// offset so the returned nodes carry absolute physical indices. Supplied by the orchestrator to break the import cycle that
// would otherwise exist between toctree and the package that sequences
// C1-C6.
type ModeCRunner func(ctx context.Context, pages tocmodel.Pages) ([]*tocmodel.Node, error)

// SubdivideOptions bounds when a node is re-expanded.
type SubdivideOptions struct {
	MaxPagesPerNode  int
	MaxTokensPerNode int
}

// Subdivide implements recursive subdivision: nodes whose span exceeds
// both the page-count and token thresholds are re-run through mode C, and
// on a same-title first child, the parent adopts that child's span.
// Siblings are subdivided concurrently.
func Subdivide(ctx context.Context, nodes []*tocmodel.Node, pages tocmodel.Pages, opts SubdivideOptions, runner ModeCRunner) error {
	logger := pipectx.LoggerFrom(ctx)

	g, gctx := errgroup.WithContext(ctx)
	for _, n := range nodes {
		n := n
		g.Go(func() error {
			if err := subdivideOne(gctx, n, pages, opts, runner); err != nil {
				logger.Warn("toctree: subdivision failed for node, leaving as-is",
					"title", n.Title, "start_index", n.StartIndex, "end_index", n.EndIndex, "error", err)
			}
			return nil
		})
	}
	return g.Wait()
}

func subdivideOne(ctx context.Context, n *tocmodel.Node, pages tocmodel.Pages, opts SubdivideOptions, runner ModeCRunner) error {
	span := n.EndIndex - n.StartIndex
	if span <= opts.MaxPagesPerNode {
		return recurseChildren(ctx, n, pages, opts, runner)
	}

	slice := sliceByPhysicalIndex(pages, n.StartIndex, n.EndIndex)
	if tocmodel.Pages(slice).TotalTokens() < opts.MaxTokensPerNode {
		return recurseChildren(ctx, n, pages, opts, runner)
	}

	children, err := runner(ctx, slice)
	if err != nil {
		return err
	}
	if len(children) == 0 {
		return nil
	}

	if sameTitleFold(strings.TrimSpace(children[0].Title)) == sameTitleFold(strings.TrimSpace(n.Title)) {
		n.StartIndex = children[0].StartIndex
		n.EndIndex = children[0].EndIndex
		n.Nodes = children[0].Nodes
		n.Nodes = append(n.Nodes, children[1:]...)
	} else {
		n.Nodes = children
	}

	return recurseChildren(ctx, n, pages, opts, runner)
}

func recurseChildren(ctx context.Context, n *tocmodel.Node, pages tocmodel.Pages, opts SubdivideOptions, runner ModeCRunner) error {
	if len(n.Nodes) == 0 {
		return nil
	}
	return Subdivide(ctx, n.Nodes, pages, opts, runner)
}

func sameTitleFold(s string) string {
	return strings.ToLower(s)
}

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
