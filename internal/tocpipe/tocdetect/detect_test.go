package tocdetect

import (
	"context"
	"testing"

	"github.com/jackzampolin/shelf/internal/tocpipe/tocmodel"
	"github.com/jackzampolin/shelf/internal/tocpipe/tocpipetest"
)

func pagesOfText(texts ...string) tocmodel.Pages {
	pages := make(tocmodel.Pages, len(texts))
	for i, txt := range texts {
		pages[i] = tocmodel.Page{PhysicalIndex: i + 1, Text: txt}
	}
	return pages
}

func TestLocateTocPages_StopsAfterNoFollowingYes(t *testing.T) {
	pages := pagesOfText("Contents page one", "Contents page two", "Chapter 1 begins here")
	fake := tocpipetest.NewFakeClient().
		EnqueueText(`{"is_toc":"yes"}`).
		EnqueueText(`{"is_toc":"yes"}`).
		EnqueueText(`{"is_toc":"no"}`)

	got, err := LocateTocPages(context.Background(), fake, "test-model", pages, 20)
	if err != nil {
		t.Fatalf("LocateTocPages() error = %v", err)
	}
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("LocateTocPages() = %v, want [1 2]", got)
	}
}

func TestLocateTocPages_NoTocFound(t *testing.T) {
	pages := pagesOfText("page one", "page two")
	fake := tocpipetest.NewFakeClient().
		EnqueueText(`{"is_toc":"no"}`).
		EnqueueText(`{"is_toc":"no"}`)

	got, err := LocateTocPages(context.Background(), fake, "test-model", pages, 20)
	if err != nil {
		t.Fatalf("LocateTocPages() error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("LocateTocPages() = %v, want empty", got)
	}
}

func TestLocateTocPages_UnparsableTreatedAsNo(t *testing.T) {
	pages := pagesOfText("page one")
	fake := tocpipetest.NewFakeClient().EnqueueText("not json")

	got, err := LocateTocPages(context.Background(), fake, "test-model", pages, 20)
	if err != nil {
		t.Fatalf("LocateTocPages() error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("LocateTocPages() = %v, want empty on unparsable response", got)
	}
}

func TestCollapseDotLeaders_CollapsesDotRuns(t *testing.T) {
	got := CollapseDotLeaders("Introduction..........5")
	if got != "Introduction: 5" {
		t.Fatalf("CollapseDotLeaders() = %q, want %q", got, "Introduction: 5")
	}
}

func TestCollapseDotLeaders_CollapsesSpacedDots(t *testing.T) {
	got := CollapseDotLeaders("Chapter One. . . . . . 12")
	if got != "Chapter One: 12" {
		t.Fatalf("CollapseDotLeaders() = %q, want %q", got, "Chapter One: 12")
	}
}

func TestCollapseDotLeaders_LeavesShortRunsAlone(t *testing.T) {
	got := CollapseDotLeaders("e.g. this...stays")
	if got != "e.g. this...stays" {
		t.Fatalf("CollapseDotLeaders() = %q, want unchanged", got)
	}
}

func TestClassify_NoTocPages(t *testing.T) {
	fake := tocpipetest.NewFakeClient()
	got, err := Classify(context.Background(), fake, "test-model", pagesOfText("a"), nil, 20)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if got.PageIndexGivenInToc {
		t.Fatalf("Classify() with no ToC pages = %+v, want PageIndexGivenInToc false", got)
	}
	if len(fake.Calls()) != 0 {
		t.Fatalf("Classify() made a model call with no ToC pages")
	}
}

func TestClassify_PageNumbersGiven(t *testing.T) {
	pages := pagesOfText("Introduction....5", "Chapter One....12")
	fake := tocpipetest.NewFakeClient().EnqueueText(`{"page_index_given_in_toc":"yes"}`)

	got, err := Classify(context.Background(), fake, "test-model", pages, []int{1, 2}, 20)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if !got.PageIndexGivenInToc {
		t.Fatalf("Classify() = %+v, want PageIndexGivenInToc true", got)
	}
}

// TestClassify_SearchesFurtherForNumberedToc grounds the fallback path: a
// first ToC region without printed numbers triggers a further search, and
// a second region further into the document that does carry numbers wins.
func TestClassify_SearchesFurtherForNumberedToc(t *testing.T) {
	pages := pagesOfText(
		"Overview of contents",   // 1: unnumbered toc
		"some narrative content", // 2
		"Detailed Contents",      // 3: numbered toc, discovered by the further search
	)

	fake := tocpipetest.NewFakeClient().
		EnqueueText(`{"page_index_given_in_toc":"no"}`). // classify region 1
		EnqueueText(`{"is_toc":"no"}`).                   // LocateTocPages scanning page 2
		EnqueueText(`{"is_toc":"yes"}`).                  // LocateTocPages scanning page 3
		EnqueueText(`{"page_index_given_in_toc":"yes"}`)  // classify region 2

	got, err := Classify(context.Background(), fake, "test-model", pages, []int{1}, 20)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if !got.PageIndexGivenInToc {
		t.Fatalf("Classify() = %+v, want the further search to find a numbered ToC", got)
	}
	if len(got.TocPageList) != 1 || got.TocPageList[0] != 3 {
		t.Fatalf("TocPageList = %v, want [3]", got.TocPageList)
	}
}
