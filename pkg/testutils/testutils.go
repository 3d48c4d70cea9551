// Package testutils provides shared testing utilities: scripted LLM
// providers and canned fixtures.
package testutils

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quantmind/quantmind/pkg/config"
	"github.com/quantmind/quantmind/pkg/llm"
	"github.com/quantmind/quantmind/pkg/models"
)

// ScriptedProvider implements llm.Provider with a canned reply function.
// It records every request and is safe for concurrent use.
type ScriptedProvider struct {
	mu       sync.Mutex
	requests []*llm.Request

	// Reply produces the response for the nth call (1-based). When nil,
	// every call returns "ok".
	Reply func(call int, req *llm.Request) (string, error)
}

func (p *ScriptedProvider) Name() string { return config.ProviderOpenAI }

func (p *ScriptedProvider) Close() error { return nil }

func (p *ScriptedProvider) Generate(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	call := len(p.requests)
	reply := p.Reply
	p.mu.Unlock()

	if reply == nil {
		return &llm.Response{Text: "ok"}, nil
	}
	text, err := reply(call, req)
	if err != nil {
		return nil, err
	}
	return &llm.Response{Text: text}, nil
}

// CallCount returns the number of Generate calls so far.
func (p *ScriptedProvider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

// Requests returns a copy of the recorded requests.
func (p *ScriptedProvider) Requests() []*llm.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*llm.Request, len(p.requests))
	copy(out, p.requests)
	return out
}

// FailingProvider returns a ScriptedProvider that always errors.
func FailingProvider() *ScriptedProvider {
	return &ScriptedProvider{
		Reply: func(call int, req *llm.Request) (string, error) {
			return "", fmt.Errorf("scripted failure %d", call)
		},
	}
}

// EchoProvider returns a ScriptedProvider that echoes a prefix plus the
// call number, so tests can tell responses apart.
func EchoProvider(prefix string) *ScriptedProvider {
	return &ScriptedProvider{
		Reply: func(call int, req *llm.Request) (string, error) {
			return fmt.Sprintf("%s %d", prefix, call), nil
		},
	}
}

// ScriptedBlock builds an llm.Block around a scripted provider with
// retries disabled and no retry delay.
func ScriptedBlock(t testing.TB, provider llm.Provider) *llm.Block {
	t.Helper()
	cfg := config.NewLLMConfig("gpt-4o")
	cfg.APIKey = "sk-test"
	retries := 0
	cfg.RetryAttempts = &retries
	delay := 0.0
	cfg.RetryDelay = &delay

	block, err := llm.NewBlockWithProvider(cfg, provider)
	require.NoError(t, err)
	return block
}

// SamplePaper returns a paper with content for pipeline tests.
func SamplePaper(arxivID, content string) *models.Paper {
	paper := models.NewPaper("Deep Hedging with Transformers", arxivID)
	paper.Abstract = "We study hedging strategies learned end to end."
	paper.Authors = []string{"A. Quant", "B. Trader"}
	paper.Categories = []string{"q-fin.CP"}
	paper.Content = content
	return paper
}
