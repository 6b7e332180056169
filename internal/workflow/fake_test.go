package workflow

import (
	"context"
	"sync"

	"github.com/ashureev/growthdesk/internal/domain"
	"github.com/ashureev/growthdesk/internal/generation"
)

// fakeConnector records calls and answers from per-stage functions.
type fakeConnector struct {
	mu    sync.Mutex
	calls map[generation.Stage]int
	chats []generation.ChatRequest

	chat   func(generation.ChatRequest) (string, error)
	text   func(string) (string, error)
	prompt func(string) (domain.PromptPair, error)
	image  func(string) ([]byte, error)
}

func newFakeConnector() *fakeConnector {
	return &fakeConnector{
		calls: make(map[generation.Stage]int),
		chat: func(generation.ChatRequest) (string, error) {
			return "Try a flash sale", nil
		},
		text: func(details string) (string, error) {
			return "Fresh from the oven: " + details, nil
		},
		prompt: func(string) (domain.PromptPair, error) {
			return generation.ParsePromptPair("IMAGE PROMPT: crusty bread\nNEGATIVE PROMPT: blurry"), nil
		},
		image: func(string) ([]byte, error) {
			return []byte{0x89, 'P', 'N', 'G'}, nil
		},
	}
}

func (f *fakeConnector) record(stage generation.Stage) {
	f.mu.Lock()
	f.calls[stage]++
	f.mu.Unlock()
}

func (f *fakeConnector) count(stage generation.Stage) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[stage]
}

func (f *fakeConnector) lastChat() generation.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chats[len(f.chats)-1]
}

func (f *fakeConnector) ChatReply(_ context.Context, req generation.ChatRequest) (string, error) {
	f.record(generation.StageChat)
	f.mu.Lock()
	f.chats = append(f.chats, req)
	f.mu.Unlock()
	return f.chat(req)
}

func (f *fakeConnector) TextContent(ctx context.Context, details string) (string, error) {
	f.record(generation.StageContent)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return f.text(details)
}

func (f *fakeConnector) PromptPair(_ context.Context, content string) (domain.PromptPair, error) {
	f.record(generation.StagePrompt)
	return f.prompt(content)
}

func (f *fakeConnector) Image(_ context.Context, prompt string) ([]byte, error) {
	f.record(generation.StageImage)
	return f.image(prompt)
}

// recorder collects observed events.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Observe(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) path() []StageName {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]StageName, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.To)
	}
	return out
}
