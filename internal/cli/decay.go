package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/copperline/copperline/internal/config"
	"github.com/copperline/copperline/internal/engine"
	"github.com/copperline/copperline/internal/store"
	"github.com/spf13/cobra"
)

var decayCmd = &cobra.Command{
	Use:   "decay",
	Short: "Run a single decay pass over the score ledger",
	Long:  "Reverses every ledger entry whose decay window has elapsed, then exits. The serve command runs the same pass on a timer; this is for operators and cron.",
	RunE:  runDecay,
}

func runDecay(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return fmt.Errorf("resolve db path: %w", err)
		}
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	eng := engine.New(db)
	n, err := eng.RunDecay(context.Background())
	if err != nil {
		return fmt.Errorf("decay pass: %w", err)
	}

	fmt.Fprintf(os.Stderr, "decay: reversed %d entries\n", n)
	return nil
}
