package main

import (
	"errors"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"bible-rag/internal/helper"
	"bible-rag/internal/models"
	"bible-rag/internal/parser"
)

var (
	setupDownload bool
	setupSkipTest bool
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Prepare the corpus and build the vector index",
	Long: `Ensures the verse corpus exists (downloading the full KJV with --download,
otherwise seeding the bundled sample), rebuilds the vector index and runs a
smoke-test question.`,
	Args: cobra.NoArgs,
	RunE: runSetup,
}

func init() {
	setupCmd.Flags().BoolVar(&setupDownload, "download", false, "download the full corpus from $BIBLE_DATA_URL")
	setupCmd.Flags().BoolVar(&setupSkipTest, "skip-test", false, "skip the smoke-test question")
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	log.Info().Msg("Setting up the Bible RAG assistant")

	if err := helper.CreateFolder(cfg.Store.Path); err != nil {
		return err
	}

	if setupDownload {
		stats, err := parser.DownloadBible(ctx, cfg.Store.CorpusURL, cfg.Store.CorpusPath)
		if err != nil {
			return err
		}
		helper.PrettyPrint(cmd.OutOrStdout(), stats)
	} else if _, err := os.Stat(cfg.Store.CorpusPath); errors.Is(err, os.ErrNotExist) {
		if err := parser.SeedBible(cfg.Store.CorpusPath); err != nil {
			return err
		}
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.indexer.Rebuild(ctx)
	if err != nil {
		return err
	}
	cmd.Printf("Indexed %d chunks into %s\n", n, cfg.Store.Path)

	if setupSkipTest {
		return nil
	}
	question := models.TestQuestions[0]
	ans, err := a.rag.Answer(ctx, question)
	if err != nil {
		return err
	}
	cmd.Printf("Test question: %s\nAnswer: %s\nSources: %v\n", question, helper.Truncate(ans.Text, 200), ans.References())
	log.Info().Msg("Setup completed successfully")
	return nil
}
