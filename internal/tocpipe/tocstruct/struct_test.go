package tocstruct

import (
	"context"
	"errors"
	"testing"

	"github.com/jackzampolin/shelf/internal/tocpipe/llmclient"
	"github.com/jackzampolin/shelf/internal/tocpipe/tocerrors"
	"github.com/jackzampolin/shelf/internal/tocpipe/tocpipetest"
)

func TestTransform_SimpleCompleteResponse(t *testing.T) {
	fake := tocpipetest.NewFakeClient().
		EnqueueText(`[{"structure":"1","title":"Introduction","page":3}]`).
		EnqueueText(`{"complete":"yes"}`)

	items, err := Transform(context.Background(), fake, "test-model", "1. Introduction ... 3")
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	if len(items) != 1 || items[0].Title != "Introduction" || items[0].Page == nil || *items[0].Page != 3 {
		t.Fatalf("Transform() = %+v", items)
	}
	if items[0].ListIndex != 0 {
		t.Fatalf("ListIndex = %d, want 0", items[0].ListIndex)
	}
}

// TestTransform_ContinuesOnTruncation grounds the continuation loop: a
// truncated first response triggers a completeness check, a continue call,
// and a final completeness check before the merged result is parsed.
func TestTransform_ContinuesOnTruncation(t *testing.T) {
	fake := tocpipetest.NewFakeClient().
		Enqueue(tocpipetest.Answer{Text: `[{"structure":"1","title":"Introduction","page":3}`, Finish: llmclient.MaxOutputReached}).
		EnqueueText(`{"complete":"no"}`).
		Enqueue(tocpipetest.Answer{Text: `[{"structure":"2","title":"Chapter One","page":10}]`, Finish: llmclient.Finished}).
		EnqueueText(`{"complete":"yes"}`)

	items, err := Transform(context.Background(), fake, "test-model", "toc text")
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2; items=%+v", len(items), items)
	}
	if items[1].Title != "Chapter One" {
		t.Fatalf("items[1].Title = %q, want %q", items[1].Title, "Chapter One")
	}
}

func TestTransform_GivesUpAfterMaxContinueAttempts(t *testing.T) {
	fake := tocpipetest.NewFakeClient().
		Enqueue(tocpipetest.Answer{Text: `[{"structure":"1","title":"Partial","page":1}]`, Finish: llmclient.MaxOutputReached})
	for i := 0; i < MaxContinueAttempts; i++ {
		fake.EnqueueText(`{"complete":"no"}`).
			Enqueue(tocpipetest.Answer{Text: `]`, Finish: llmclient.MaxOutputReached})
	}
	fake.EnqueueText(`{"complete":"no"}`)

	items, err := Transform(context.Background(), fake, "test-model", "toc text")
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	if len(items) != 1 || items[0].Title != "Partial" {
		t.Fatalf("Transform() = %+v, want the partial item preserved", items)
	}
}

func TestGenerateInit_FatalOnTruncation(t *testing.T) {
	fake := tocpipetest.NewFakeClient().
		Enqueue(tocpipetest.Answer{Text: `[{"title":"A"}]`, Finish: llmclient.MaxOutputReached})

	_, err := GenerateInit(context.Background(), fake, "test-model", "window text")
	if !errors.Is(err, tocerrors.ErrWindowTooLarge) {
		t.Fatalf("GenerateInit() error = %v, want ErrWindowTooLarge", err)
	}
}

func TestGenerateInit_ParsesPhysicalIndexTags(t *testing.T) {
	fake := tocpipetest.NewFakeClient().
		EnqueueText(`[{"structure":"1","title":"Introduction","physical_index":"<physical_index_4>"}]`)

	items, err := GenerateInit(context.Background(), fake, "test-model", "window text")
	if err != nil {
		t.Fatalf("GenerateInit() error = %v", err)
	}
	if len(items) != 1 || items[0].PhysicalIndex == nil || *items[0].PhysicalIndex != 4 {
		t.Fatalf("GenerateInit() = %+v", items)
	}
}

func TestGenerateContinue_FatalOnTruncation(t *testing.T) {
	fake := tocpipetest.NewFakeClient().
		Enqueue(tocpipetest.Answer{Text: `[]`, Finish: llmclient.MaxOutputReached})

	_, err := GenerateContinue(context.Background(), fake, "test-model", nil, "window text")
	if !errors.Is(err, tocerrors.ErrWindowTooLarge) {
		t.Fatalf("GenerateContinue() error = %v, want ErrWindowTooLarge", err)
	}
}

func TestJoinJSONFragments_StitchesNewArrayContinuation(t *testing.T) {
	prefix := `[{"structure":"1","title":"Introduction","page":3}`
	continuation := `[{"structure":"2","title":"Chapter One","page":10}]`
	want := `[{"structure":"1","title":"Introduction","page":3},{"structure":"2","title":"Chapter One","page":10}]`
	if got := joinJSONFragments(prefix, continuation); got != want {
		t.Fatalf("joinJSONFragments(%q, %q) = %q, want %q", prefix, continuation, got, want)
	}
}

func TestJoinJSONFragments_EmptyContinuation(t *testing.T) {
	got := joinJSONFragments(`[{"a":1}]`, "")
	if got != `[{"a":1}]` {
		t.Fatalf("joinJSONFragments() = %q", got)
	}
}

func TestCoerceInt(t *testing.T) {
	cases := []struct {
		name  string
		value any
		want  int
		ok    bool
	}{
		{"float", float64(7), 7, true},
		{"numeric_string", "42", 42, true},
		{"unparsable_string", "abc", 0, false},
		{"nil", nil, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := coerceInt(tc.value)
			if got != tc.want || ok != tc.ok {
				t.Fatalf("coerceInt(%v) = (%d, %v), want (%d, %v)", tc.value, got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestParsePhysicalIndexTag(t *testing.T) {
	cases := []struct {
		name  string
		value any
		want  int
		ok    bool
	}{
		{"tag", "<physical_index_12>", 12, true},
		{"number", float64(5), 5, true},
		{"unparsable", "none", 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := parsePhysicalIndexTag(tc.value)
			if got != tc.want || ok != tc.ok {
				t.Fatalf("parsePhysicalIndexTag(%v) = (%d, %v), want (%d, %v)", tc.value, got, ok, tc.want, tc.ok)
			}
		})
	}
}
