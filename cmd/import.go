package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/agentic-research/arbor/internal/ingest"
	"github.com/agentic-research/arbor/internal/store"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"
)

var mapping ingest.Mapping

func init() {
	d := ingest.DefaultMapping()
	importCmd.Flags().StringVar(&mapping.Items, "items", d.Items, "JSONPath selecting the item list")
	importCmd.Flags().StringVar(&mapping.ID, "id-field", d.ID, "Field holding the node id")
	importCmd.Flags().StringVar(&mapping.Parent, "parent-field", d.Parent, "Field holding the parent id")
	importCmd.Flags().StringVar(&mapping.Order, "order-field", d.Order, "Field holding the sibling order key")
	rootCmd.AddCommand(importCmd)
}

var importCmd = &cobra.Command{
	Use:   "import [export.json]",
	Short: "Load a JSON export into the store, deriving levels from parents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		abs, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		im := ingest.NewImporter(osfs.New(filepath.Dir(abs)), mapping)

		db, err := store.Open(ctx, cfg.StoreDriver, cfg.StoreDSN)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		n, err := im.Import(ctx, filepath.Base(abs), db)
		if err != nil {
			return err
		}
		fmt.Printf("Imported %d nodes into %s\n", n, cfg.StoreDSN)
		return nil
	},
}
