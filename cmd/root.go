package main

import (
	"github.com/spf13/cobra"

	"bible-rag/internal/config"
	"bible-rag/internal/helper"
)

var (
	configPath string
	logLevel   string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "bible-rag",
	Short: "Ask questions about the Bible, answered from retrieved verses",
	Long: `bible-rag indexes a verse corpus into a local vector store and answers
questions with a hosted language model, citing the verses it retrieved.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default $CONFIG_FILE or "+config.DefaultConfigFile+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
}

func loadConfig(cmd *cobra.Command, args []string) error {
	c, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		c.Log.Level = logLevel
	}
	helper.SetupLogger(c.Log.Level, c.Log.Pretty == nil || *c.Log.Pretty)
	cfg = c
	return nil
}
