package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"bible-rag/internal/console"
	"bible-rag/internal/helper"
	"bible-rag/internal/models"
	"bible-rag/internal/rag"
)

var (
	askTestament string
	askChunkType string
	askK         int
	askJSON      bool
	askNoStream  bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a single question",
	Example: `  bible-rag ask "What does the Bible say about creation?"
  bible-rag ask --testament new --json "Tell me about God's love for the world"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askTestament, "testament", "", "restrict retrieval to the old or new testament")
	askCmd.Flags().StringVar(&askChunkType, "chunk-type", "", "restrict retrieval to verse or passage chunks")
	askCmd.Flags().IntVarP(&askK, "k", "k", 0, "number of chunks to retrieve (default $RETRIEVAL_K)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the answer as JSON")
	askCmd.Flags().BoolVar(&askNoStream, "no-stream", false, "print the answer only when complete")
	rootCmd.AddCommand(askCmd)
}

func retrievalOptions(testament, chunkType string, k int) ([]rag.Option, error) {
	var opts []rag.Option
	if testament != "" {
		t, err := models.ParseTestament(testament)
		if err != nil {
			return nil, err
		}
		opts = append(opts, rag.WithTestament(t))
	}
	switch models.ChunkType(chunkType) {
	case "":
	case models.ChunkTypeVerse, models.ChunkTypePassage:
		opts = append(opts, rag.WithChunkType(models.ChunkType(chunkType)))
	default:
		return nil, fmt.Errorf("chunk type must be verse or passage, got %q", chunkType)
	}
	if k > 0 {
		opts = append(opts, rag.WithK(k))
	}
	return opts, nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	opts, err := retrievalOptions(askTestament, askChunkType, askK)
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

	question := strings.Join(args, " ")
	if askJSON {
		ans, err := a.rag.Answer(ctx, question, opts...)
		if err != nil {
			return err
		}
		helper.PrettyPrint(cmd.OutOrStdout(), ans)
		return nil
	}

	c := console.New(cmd.InOrStdin(), cmd.OutOrStdout(), a.rag, console.Options{Stream: !askNoStream, Opts: opts})
	return c.Ask(ctx, question)
}
