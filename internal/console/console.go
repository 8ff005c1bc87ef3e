package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"

	"bible-rag/internal/llmservice"
	"bible-rag/internal/models"
	"bible-rag/internal/rag"
)

var quitWords = map[string]bool{"quit": true, "exit": true, "q": true}

// Responder answers one question, streaming fragments to fn when it is set.
type Responder interface {
	AnswerStream(ctx context.Context, question string, fn llmservice.StreamFunc, opts ...rag.Option) (*models.Answer, error)
}

type Options struct {
	// Prompt prints the input prompt; disable when stdin is not a terminal.
	Prompt bool
	// Stream prints the answer as it is generated.
	Stream bool
	// Opts are applied to every question.
	Opts []rag.Option
}

type styles struct {
	question lipgloss.Style
	label    lipgloss.Style
	source   lipgloss.Style
	muted    lipgloss.Style
	err      lipgloss.Style
}

func newStyles(out io.Writer) styles {
	r := lipgloss.NewRenderer(out)
	return styles{
		question: r.NewStyle().Bold(true).Foreground(lipgloss.Color("#06B6D4")),
		label:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED")),
		source:   r.NewStyle().Foreground(lipgloss.Color("#A6E3A1")),
		muted:    r.NewStyle().Foreground(lipgloss.Color("#6C7086")),
		err:      r.NewStyle().Foreground(lipgloss.Color("#F38BA8")),
	}
}

// Console is the line-oriented question loop.
type Console struct {
	in        io.Reader
	out       io.Writer
	responder Responder
	opts      Options
	st        styles
}

func New(in io.Reader, out io.Writer, responder Responder, opts Options) *Console {
	return &Console{in: in, out: out, responder: responder, opts: opts, st: newStyles(out)}
}

// Ask answers one question and prints the answer and its sources.
// Failures are printed and returned.
func (c *Console) Ask(ctx context.Context, question string) error {
	fmt.Fprintf(c.out, "%s %s\n", c.st.question.Render("Q:"), question)
	fmt.Fprintf(c.out, "%s ", c.st.label.Render("A:"))

	var stream llmservice.StreamFunc
	if c.opts.Stream {
		stream = func(_ context.Context, chunk []byte) error {
			_, err := c.out.Write(chunk)
			return err
		}
	}

	ans, err := c.responder.AnswerStream(ctx, question, stream, c.opts.Opts...)
	if err != nil {
		log.Debug().Err(err).Msg("Question failed")
		fmt.Fprintln(c.out, c.st.err.Render(rag.FriendlyError(err)))
		return err
	}
	if !c.opts.Stream {
		fmt.Fprint(c.out, ans.Text)
	}
	fmt.Fprintln(c.out)
	c.printSources(ans)
	return nil
}

func (c *Console) printSources(ans *models.Answer) {
	if ans.NoContext {
		fmt.Fprintln(c.out, c.st.muted.Render("(no strong matches in the verse index)"))
		return
	}
	fmt.Fprintln(c.out, c.st.label.Render("Sources:"))
	for _, s := range ans.Sources {
		fmt.Fprintf(c.out, "  %s %s\n", c.st.source.Render("["+s.Reference+"]"), c.st.muted.Render(fmt.Sprintf("(%.2f)", s.Similarity)))
	}
}

// RunQuestions answers each question in turn, continuing past failures.
func (c *Console) RunQuestions(ctx context.Context, questions []string) {
	for i, q := range questions {
		fmt.Fprintln(c.out, c.st.muted.Render(fmt.Sprintf("--- Test question %d/%d ---", i+1, len(questions))))
		_ = c.Ask(ctx, q)
		fmt.Fprintln(c.out)
	}
}

// RunLoop reads questions line by line until a quit word, EOF or cancellation.
func (c *Console) RunLoop(ctx context.Context) error {
	fmt.Fprintln(c.out, c.st.muted.Render("Type 'quit', 'exit' or 'q' to leave."))
	scanner := bufio.NewScanner(c.in)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if c.opts.Prompt {
			fmt.Fprint(c.out, "\n"+c.st.question.Render("Your question:")+" ")
		}
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			fmt.Fprintln(c.out, "\nGoodbye!")
			return nil
		}

		question := strings.TrimSpace(scanner.Text())
		if quitWords[strings.ToLower(question)] {
			fmt.Fprintln(c.out, "Goodbye!")
			return nil
		}
		if question == "" {
			continue
		}
		_ = c.Ask(ctx, question)
	}
}
