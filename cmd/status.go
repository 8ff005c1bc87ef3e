package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"bible-rag/internal/helper"
	"bible-rag/internal/models"
	"bible-rag/internal/parser"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show corpus and index statistics",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

type statusReport struct {
	Corpus *parser.BibleStats `json:"corpus,omitempty"`
	Index  models.IndexStats  `json:"index"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	store, err := openStore(cfg)
	if err != nil {
		return err
	}

	report := statusReport{Index: store.Stats()}
	if _, err := os.Stat(cfg.Store.CorpusPath); err == nil {
		verses, err := parser.LoadBible(cfg.Store.CorpusPath, cfg.Store.Translation)
		if err != nil {
			return err
		}
		stats := parser.Stats(verses)
		report.Corpus = &stats
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	helper.PrettyPrint(cmd.OutOrStdout(), report)
	return nil
}
