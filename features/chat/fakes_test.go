package chat_test

import (
	"context"
	"sync"

	"github.com/Daiyanurrehmankhan/tauqeer-ali-khan-chatbot/internal/prompt"
)

type fakeRetriever struct {
	context string
	err     error
	queries []string
	mu      sync.Mutex
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query string, k int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	return f.context, f.err
}

// fakeGenerator emits tokens then fails with err, if set.
type fakeGenerator struct {
	tokens []string
	err    error

	mu          sync.Mutex
	histories   [][]prompt.Message
	messages    []string
	systems     []string
	hadDeadline bool
	hook        func()
}

func (f *fakeGenerator) Stream(ctx context.Context, system string, history []prompt.Message, msg string, emit func(string) error) (string, error) {
	f.mu.Lock()
	f.histories = append(f.histories, history)
	f.messages = append(f.messages, msg)
	f.systems = append(f.systems, system)
	_, f.hadDeadline = ctx.Deadline()
	hook := f.hook
	f.mu.Unlock()

	if hook != nil {
		hook()
	}

	var reply string
	for _, tok := range f.tokens {
		if err := emit(tok); err != nil {
			return reply, err
		}
		reply += tok
	}
	if f.err != nil {
		return reply, f.err
	}
	return reply, nil
}
