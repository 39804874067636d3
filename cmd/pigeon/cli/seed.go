package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pigeonhq/pigeon/internal/credstore"
)

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file>",
		Short: "Load services and API keys from a YAML seed file",
		Long: `Load a YAML seed file into the local SQLite credential store. Secrets in
the file are plaintext and stored in the wrapped form token resolution
expects.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := credstore.LoadSeedFile(args[0])
			if err != nil {
				return fmt.Errorf("load seed file: %w", err)
			}

			store, err := openCredStore()
			if err != nil {
				return fmt.Errorf("open credential store: %w", err)
			}
			defer store.Close()

			services, keys, err := seed.Apply(context.Background(), store)
			if err != nil {
				return fmt.Errorf("apply seed file: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d services, %d API keys\n", services, keys)
			return nil
		},
	}
}
