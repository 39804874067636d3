package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pigeonhq/pigeon/internal/model"
)

func newServiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage services in the local credential store",
	}

	cmd.AddCommand(newServiceCreateCmd())
	cmd.AddCommand(newServiceListCmd())

	return cmd
}

func newServiceCreateCmd() *cobra.Command {
	var (
		name         string
		messageLimit int
		rateLimit    int
		restricted   bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a new service",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openCredStore()
			if err != nil {
				return fmt.Errorf("open credential store: %w", err)
			}
			defer store.Close()

			svc := model.Service{
				ID:           uuid.Must(uuid.NewV7()),
				Name:         name,
				Active:       true,
				MessageLimit: messageLimit,
				RateLimit:    rateLimit,
				Restricted:   restricted,
				CreatedAt:    time.Now().UTC(),
			}
			if err := store.CreateService(context.Background(), &svc); err != nil {
				return fmt.Errorf("create service: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created service %q\n", svc.Name)
			fmt.Fprintf(cmd.OutOrStdout(), "  id: %s\n", svc.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "service name (required)")
	cmd.Flags().IntVar(&messageLimit, "message-limit", 250000, "daily message budget")
	cmd.Flags().IntVar(&rateLimit, "rate-limit", 3000, "requests per window")
	cmd.Flags().BoolVar(&restricted, "restricted", false, "restrict to whitelisted recipients")
	cmd.MarkFlagRequired("name")

	return cmd
}

func newServiceListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered services",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openCredStore()
			if err != nil {
				return fmt.Errorf("open credential store: %w", err)
			}
			defer store.Close()

			services, err := store.ListServices(context.Background())
			if err != nil {
				return fmt.Errorf("list services: %w", err)
			}
			if len(services) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No services registered.")
				return nil
			}
			for _, svc := range services {
				state := "active"
				if !svc.Active {
					state = "archived"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-20s %s\n", svc.ID, svc.Name, state)
			}
			return nil
		},
	}
}
