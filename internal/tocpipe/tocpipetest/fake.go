// Package tocpipetest provides a scriptable fake LLM client for exercising
// the ToC pipeline without network access, the same role
// internal/providers.MockClient plays for the rest of the test suite.
package tocpipetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackzampolin/shelf/internal/tocpipe/llmclient"
)

// Answer is one canned response a FakeClient will return.
type Answer struct {
	Text   string
	Finish llmclient.FinishReason // defaults to Finished
	Err    error
}

// FakeClient returns canned answers keyed by the order prompts arrive, or
// by a caller-supplied classifier function when prompts must be matched by
// content rather than call sequence.
type FakeClient struct {
	mu      sync.Mutex
	queue   []Answer
	byMatch []matchedAnswer
	calls   []llmclient.Request
}

type matchedAnswer struct {
	match  func(llmclient.Request) bool
	answer Answer
}

// NewFakeClient creates an empty fake; use Enqueue/EnqueueMatch to script it.
func NewFakeClient() *FakeClient {
	return &FakeClient{}
}

// Enqueue appends a canned answer to the FIFO queue consulted when no
// match-based answer applies.
func (f *FakeClient) Enqueue(a Answer) *FakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, a)
	return f
}

// EnqueueText is a convenience for the common case of a plain finished
// response.
func (f *FakeClient) EnqueueText(text string) *FakeClient {
	return f.Enqueue(Answer{Text: text, Finish: llmclient.Finished})
}

// EnqueueMatch registers an answer returned for the first request matching
// predicate. Match entries are checked in registration order before the
// FIFO queue; each answers one request and is then removed.
func (f *FakeClient) EnqueueMatch(match func(llmclient.Request) bool, a Answer) *FakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byMatch = append(f.byMatch, matchedAnswer{match: match, answer: a})
	return f
}

// Calls returns every request observed so far, in order.
func (f *FakeClient) Calls() []llmclient.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]llmclient.Request, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *FakeClient) Complete(ctx context.Context, req llmclient.Request) (string, error) {
	text, _, err := f.CompleteWithFinish(ctx, req)
	return text, err
}

func (f *FakeClient) CompleteWithFinish(ctx context.Context, req llmclient.Request) (string, llmclient.FinishReason, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)

	for i, m := range f.byMatch {
		if m.match(req) {
			f.byMatch = append(f.byMatch[:i], f.byMatch[i+1:]...)
			f.mu.Unlock()
			return resolve(m.answer)
		}
	}

	if len(f.queue) == 0 {
		f.mu.Unlock()
		return "", llmclient.Finished, fmt.Errorf("tocpipetest: no scripted answer left for prompt_key %q", req.PromptKey)
	}
	a := f.queue[0]
	f.queue = f.queue[1:]
	f.mu.Unlock()
	return resolve(a)
}

func resolve(a Answer) (string, llmclient.FinishReason, error) {
	if a.Err != nil {
		return "", llmclient.Finished, a.Err
	}
	finish := a.Finish
	if finish == "" {
		finish = llmclient.Finished
	}
	return a.Text, finish, nil
}

var _ llmclient.Client = (*FakeClient)(nil)
