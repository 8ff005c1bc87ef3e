// Package ragtest provides deterministic stand-ins for the embedding and generation
// services so the responder and front ends can be tested offline.
package ragtest

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"unicode"

	"github.com/tmc/langchaingo/llms"

	"bible-rag/internal/config"
)

const dims = 4096

var stopwords = map[string]bool{
	"what": true, "does": true, "about": true, "bible": true, "tell": true, "with": true,
	"that": true, "this": true, "from": true, "have": true, "shall": true, "unto": true,
}

// Embedder is a bag-of-words embedder. Each new stem gets its own dimension, so two
// texts are similar only when they share stems. A small bias keeps vectors non-zero.
type Embedder struct {
	mu    sync.Mutex
	vocab map[string]int
	Err   error
	Calls int
}

func NewEmbedder() *Embedder {
	return &Embedder{vocab: make(map[string]int)}
}

func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		v, err := e.EmbedQuery(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (e *Embedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Calls++
	if e.Err != nil {
		return nil, e.Err
	}

	vec := make([]float32, dims)
	vec[0] = 0.01
	for _, tok := range Stems(text) {
		idx, ok := e.vocab[tok]
		if !ok {
			idx = len(e.vocab) + 1
			if idx >= dims {
				return nil, errors.New("ragtest: vocabulary full")
			}
			e.vocab[tok] = idx
		}
		vec[idx]++
	}
	return vec, nil
}

// Stems lowercases text, drops short words and stopwords and truncates the rest to five letters.
func Stems(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	var out []string
	for _, w := range words {
		if len(w) < 4 || stopwords[w] {
			continue
		}
		if len(w) > 5 {
			w = w[:5]
		}
		out = append(out, w)
	}
	return out
}

// Model is a scripted chat model that records every request.
type Model struct {
	mu       sync.Mutex
	Reply    string
	Err      error
	Requests []Request
}

type Request struct {
	Messages []llms.MessageContent
	Options  llms.CallOptions
}

func (m *Model) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	var opts llms.CallOptions
	for _, o := range options {
		o(&opts)
	}
	m.mu.Lock()
	m.Requests = append(m.Requests, Request{Messages: messages, Options: opts})
	reply, err := m.Reply, m.Err
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if reply == "" {
		reply = "In the beginning God created the heaven and the earth [Genesis 1:1]."
	}
	if opts.StreamingFunc != nil {
		for _, word := range strings.SplitAfter(reply, " ") {
			if err := opts.StreamingFunc(ctx, []byte(word)); err != nil {
				return nil, err
			}
		}
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: reply}}}, nil
}

// Last returns the most recent request.
func (m *Model) Last() Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Requests) == 0 {
		return Request{}
	}
	return m.Requests[len(m.Requests)-1]
}

func (m *Model) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}

// Text concatenates the text parts of a message.
func Text(msg llms.MessageContent) string {
	var b strings.Builder
	for _, p := range msg.Parts {
		if t, ok := p.(llms.TextContent); ok {
			b.WriteString(t.Text)
		}
	}
	return b.String()
}

// Config returns a configuration that reads the sample corpus from dir and keeps matches
// sharing at least one stem with the question.
func Config(dir string) *config.Config {
	cfg := config.Default()
	cfg.LLM.Model = "test-model"
	cfg.EmbedLLM = config.LLMConfig{Provider: cfg.LLM.Provider, Model: "test-embed"}
	cfg.Store.Path = filepath.Join(dir, "chroma_db")
	cfg.Store.CorpusPath = filepath.Join(dir, "KJV.json")
	cfg.RAG.MinRelevance = 0.3
	cfg.RAG.EmbedRateLimit = 0
	return cfg
}
