package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"bible-rag/internal/console"
	"bible-rag/internal/models"
)

var (
	chatTest      bool
	chatNoStream  bool
	chatTestament string
	chatChunkType string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive question loop in the terminal",
	Long: `Reads questions from standard input and prints each answer with its sources.
Type quit, exit or q (or send EOF) to leave. No history is kept between questions.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().BoolVar(&chatTest, "test", false, "answer the built-in test questions before the loop")
	chatCmd.Flags().BoolVar(&chatNoStream, "no-stream", false, "print answers only when complete")
	chatCmd.Flags().StringVar(&chatTestament, "testament", "", "restrict retrieval to the old or new testament")
	chatCmd.Flags().StringVar(&chatChunkType, "chunk-type", "", "restrict retrieval to verse or passage chunks")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	opts, err := retrievalOptions(chatTestament, chatChunkType, 0)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	if _, err := a.indexer.Ensure(ctx); err != nil {
		return err
	}

	cmd.Printf("%s %s\n", cfg.App.Icon, cfg.App.Title)
	c := console.New(cmd.InOrStdin(), cmd.OutOrStdout(), a.rag, console.Options{
		Prompt: term.IsTerminal(int(os.Stdin.Fd())),
		Stream: !chatNoStream,
		Opts:   opts,
	})
	if chatTest {
		c.RunQuestions(ctx, models.TestQuestions)
	}
	return c.RunLoop(ctx)
}
