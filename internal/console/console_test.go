package console

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bible-rag/internal/llmservice"
	"bible-rag/internal/models"
	"bible-rag/internal/rag"
)

type scripted struct {
	asked []string
	fail  map[string]error
}

func (s *scripted) AnswerStream(ctx context.Context, q string, fn llmservice.StreamFunc, _ ...rag.Option) (*models.Answer, error) {
	s.asked = append(s.asked, q)
	if err := s.fail[q]; err != nil {
		return nil, err
	}
	text := "The LORD is my shepherd."
	if fn != nil {
		for _, part := range []string{"The LORD ", "is my ", "shepherd."} {
			if err := fn(ctx, []byte(part)); err != nil {
				return nil, err
			}
		}
	}
	if q == "quantum computing" {
		return &models.Answer{Question: q, Text: text, Sources: []models.Source{}, NoContext: true}, nil
	}
	return &models.Answer{
		Question: q,
		Text:     text,
		Sources:  []models.Source{{ChunkMetadata: models.ChunkMetadata{Reference: "Psalms 23:1"}, Similarity: 0.41}},
	}, nil
}

func TestRunLoop_QuitWords(t *testing.T) {
	for _, word := range []string{"quit", "exit", "q", "  QUIT  "} {
		t.Run(word, func(t *testing.T) {
			resp := &scripted{}
			var out bytes.Buffer
			in := strings.NewReader("Who is my shepherd?\n\n" + word + "\nnever asked\n")

			err := New(in, &out, resp, Options{}).RunLoop(context.Background())
			require.NoError(t, err)
			assert.Equal(t, []string{"Who is my shepherd?"}, resp.asked)
			assert.Contains(t, out.String(), "Goodbye!")
		})
	}
}

func TestRunLoop_EOF(t *testing.T) {
	resp := &scripted{}
	var out bytes.Buffer

	err := New(strings.NewReader("one\ntwo"), &out, resp, Options{Prompt: true}).RunLoop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, resp.asked)
	assert.Equal(t, 3, strings.Count(out.String(), "Your question:"))
}

func TestRunLoop_ContinuesAfterError(t *testing.T) {
	resp := &scripted{fail: map[string]error{"bad": models.ErrGeneration}}
	var out bytes.Buffer

	err := New(strings.NewReader("bad\ngood\nq\n"), &out, resp, Options{}).RunLoop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"bad", "good"}, resp.asked)
	assert.Contains(t, out.String(), "Sorry, I encountered an error while generating an answer.")
	assert.Contains(t, out.String(), "[Psalms 23:1]")
}

func TestRunLoop_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := New(strings.NewReader("question\n"), &bytes.Buffer{}, &scripted{}, Options{}).RunLoop(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAsk_Streams(t *testing.T) {
	var out bytes.Buffer
	c := New(nil, &out, &scripted{}, Options{Stream: true})

	require.NoError(t, c.Ask(context.Background(), "Who is my shepherd?"))
	assert.Equal(t, 1, strings.Count(out.String(), "The LORD is my shepherd."))
	assert.Contains(t, out.String(), "[Psalms 23:1] (0.41)")
}

func TestAsk_NoContext(t *testing.T) {
	var out bytes.Buffer
	c := New(nil, &out, &scripted{}, Options{})

	require.NoError(t, c.Ask(context.Background(), "quantum computing"))
	assert.Contains(t, out.String(), "no strong matches")
	assert.NotContains(t, out.String(), "Sources:")
}

func TestRunQuestions(t *testing.T) {
	resp := &scripted{fail: map[string]error{models.TestQuestions[0]: errors.New("down")}}
	var out bytes.Buffer

	New(nil, &out, resp, Options{}).RunQuestions(context.Background(), models.TestQuestions)
	assert.Equal(t, models.TestQuestions, resp.asked)
	assert.Contains(t, out.String(), "Test question 3/3")
}
