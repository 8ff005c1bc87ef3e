package main

import (
	"github.com/spf13/cobra"
)

var indexFile string

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Back up or restore the vector index",
}

var indexExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the collection to a file (encrypted when $EXPORT_ENCRYPTION_KEY is set)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		file := indexFile
		if file == "" {
			file = store.ExportPath()
		}
		if err := store.Export(file); err != nil {
			return err
		}
		cmd.Printf("Exported %d documents to %s\n", store.Count(), file)
		return nil
	},
}

var indexImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Replace the collection with one exported earlier",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		file := indexFile
		if file == "" {
			file = store.ExportPath()
		}
		if err := store.Import(file); err != nil {
			return err
		}
		cmd.Printf("Imported %d documents from %s\n", store.Count(), file)
		return nil
	},
}

var indexDropCmd = &cobra.Command{
	Use:   "drop",
	Short: "Remove every document from the collection",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		n := store.Count()
		if err := store.DeleteCollection(); err != nil {
			return err
		}
		cmd.Printf("Dropped %d documents from %s\n", n, cfg.Store.Collection)
		return nil
	},
}

func init() {
	indexCmd.PersistentFlags().StringVarP(&indexFile, "file", "f", "", "backup file (default next to the store directory)")
	indexCmd.AddCommand(indexExportCmd, indexImportCmd, indexDropCmd)
	rootCmd.AddCommand(indexCmd)
}
