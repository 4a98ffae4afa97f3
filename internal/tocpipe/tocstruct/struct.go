// Package tocstruct implements the TOC Structurer (C3): transforming raw
// ToC text (mode A/B) or page windows (mode C) into a flat list of
// tocmodel.TocItem, continuing across multiple LLM turns when output
// truncates.
package tocstruct

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jackzampolin/shelf/internal/tocpipe/llmclient"
	"github.com/jackzampolin/shelf/internal/tocpipe/pipectx"
	"github.com/jackzampolin/shelf/internal/tocpipe/tocerrors"
	"github.com/jackzampolin/shelf/internal/tocpipe/tocjson"
	"github.com/jackzampolin/shelf/internal/tocpipe/tocmodel"
)

// MaxContinueAttempts bounds the "continue the JSON" loop (spec.md §9: "a
// hard attempt bound (five)").
const MaxContinueAttempts = 5

type rawItem struct {
	Structure     string `json:"structure"`
	Title         string `json:"title"`
	Page          any    `json:"page"`
	PhysicalIndex any    `json:"physical_index"`
}

// Transform implements transform(toc_text): used in modes A and B.
func Transform(ctx context.Context, client llmclient.Client, model, tocText string) ([]tocmodel.TocItem, error) {
	logger := pipectx.LoggerFrom(ctx)

	history := []llmclient.ChatMessage{
		{Role: "user", Content: buildTransformPrompt(tocText)},
	}

	text, finish, err := client.CompleteWithFinish(ctx, llmclient.Request{
		Model:     model,
		Prompt:    buildTransformPrompt(tocText),
		PromptKey: TransformPromptKey,
	})
	if err != nil {
		return nil, fmt.Errorf("tocstruct: transform call failed: %w", err)
	}

	accumulated := text
	attempts := 0
	for {
		complete, completenessErr := checkCompleteness(ctx, client, model, accumulated)
		if completenessErr != nil {
			logger.Warn("tocstruct: completeness check failed, assuming incomplete", "error", completenessErr)
			complete = false
		}

		if complete && finish == llmclient.Finished {
			break
		}
		if attempts >= MaxContinueAttempts {
			logger.Warn("tocstruct: transform continue attempts exhausted, using partial output", "attempts", attempts)
			break
		}
		attempts++

		cut := tocjson.LastCompleteObjectEnd(accumulated)
		if cut > 0 && cut < len(accumulated) {
			accumulated = accumulated[:cut]
		}

		history = append(history, llmclient.ChatMessage{Role: "assistant", Content: accumulated})
		contText, contFinish, contErr := client.CompleteWithFinish(ctx, llmclient.Request{
			Model:     model,
			Prompt:    buildContinuePrompt(),
			History:   history,
			PromptKey: ContinuePromptKey,
		})
		if contErr != nil {
			return nil, fmt.Errorf("tocstruct: continue call failed: %w", contErr)
		}
		history = append(history, llmclient.ChatMessage{Role: "user", Content: buildContinuePrompt()})
		accumulated = joinJSONFragments(accumulated, contText)
		finish = contFinish
	}

	var raws []rawItem
	if err := tocjson.ExtractInto(accumulated, &raws); err != nil {
		return nil, fmt.Errorf("tocstruct: failed to parse transform output: %w", err)
	}

	items := make([]tocmodel.TocItem, 0, len(raws))
	for _, r := range raws {
		item := tocmodel.TocItem{
			Structure: r.Structure,
			Title:     strings.TrimSpace(r.Title),
		}
		if page, ok := coerceInt(r.Page); ok {
			item.Page = &page
		}
		items = append(items, item)
	}
	return assignListIndex(items), nil
}

func checkCompleteness(ctx context.Context, client llmclient.Client, model, partial string) (bool, error) {
	text, _, err := client.CompleteWithFinish(ctx, llmclient.Request{
		Model:     model,
		Prompt:    buildCompletenessPrompt(partial),
		PromptKey: CompletenessPromptKey,
	})
	if err != nil {
		return false, err
	}
	var resp struct {
		Complete string `json:"complete"`
	}
	if err := tocjson.ExtractInto(text, &resp); err != nil {
		return false, err
	}
	return resp.Complete == "yes", nil
}

// joinJSONFragments merges a truncated array prefix with a continuation
// fragment into one parseable array. It trims the trailing partial item
// (if any) and the leading array bracket/comma noise from the
// continuation, then stitches them with a comma.
func joinJSONFragments(prefix, continuation string) string {
	prefix = strings.TrimSpace(prefix)
	prefix = strings.TrimSuffix(prefix, "]")
	prefix = strings.TrimRight(prefix, ", \n\t")

	continuation = strings.TrimSpace(continuation)
	continuation = strings.TrimPrefix(continuation, "[")
	continuation = strings.TrimSuffix(continuation, "]")
	continuation = strings.TrimSpace(continuation)

	if continuation == "" {
		return prefix + "]"
	}
	return prefix + "," + continuation + "]"
}

// GenerateInit implements generate_init(window_text): used in mode C on the
// first window.
func GenerateInit(ctx context.Context, client llmclient.Client, model, windowText string) ([]tocmodel.TocItem, error) {
	text, finish, err := client.CompleteWithFinish(ctx, llmclient.Request{
		Model:     model,
		Prompt:    buildGenerateInitPrompt(windowText),
		PromptKey: GenerateInitPromptKey,
	})
	if err != nil {
		return nil, fmt.Errorf("tocstruct: generate_init call failed: %w", err)
	}
	if finish != llmclient.Finished {
		return nil, tocerrors.ErrWindowTooLarge
	}
	return parsePhysicalIndexItems(text)
}

// GenerateContinue implements generate_continue(prev_list, window_text):
// used in mode C on each subsequent window.
func GenerateContinue(ctx context.Context, client llmclient.Client, model string, prev []tocmodel.TocItem, windowText string) ([]tocmodel.TocItem, error) {
	prevJSON, err := json.Marshal(prev)
	if err != nil {
		return nil, fmt.Errorf("tocstruct: failed to serialize previous list: %w", err)
	}

	text, finish, err := client.CompleteWithFinish(ctx, llmclient.Request{
		Model:     model,
		Prompt:    buildGenerateContinuePrompt(string(prevJSON), windowText),
		PromptKey: GenerateContinuePromptKey,
	})
	if err != nil {
		return nil, fmt.Errorf("tocstruct: generate_continue call failed: %w", err)
	}
	if finish != llmclient.Finished {
		return nil, tocerrors.ErrWindowTooLarge
	}
	return parsePhysicalIndexItems(text)
}

var physicalIndexTagRe = regexp.MustCompile(`(\d+)`)

func parsePhysicalIndexItems(text string) ([]tocmodel.TocItem, error) {
	var raws []rawItem
	if err := tocjson.ExtractInto(text, &raws); err != nil {
		return nil, fmt.Errorf("tocstruct: failed to parse generated items: %w", err)
	}

	items := make([]tocmodel.TocItem, 0, len(raws))
	for _, r := range raws {
		item := tocmodel.TocItem{
			Structure: r.Structure,
			Title:     strings.TrimSpace(r.Title),
		}
		if idx, ok := parsePhysicalIndexTag(r.PhysicalIndex); ok {
			item.PhysicalIndex = &idx
		}
		items = append(items, item)
	}
	return assignListIndex(items), nil
}

// parsePhysicalIndexTag extracts the trailing integer from a
// "<physical_index_N>" string (or accepts a bare number).
func parsePhysicalIndexTag(v any) (int, bool) {
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

func coerceInt(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		return int(t), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

func assignListIndex(items []tocmodel.TocItem) []tocmodel.TocItem {
	for i := range items {
		items[i].ListIndex = i
	}
	return items
}
