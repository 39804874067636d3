package cli

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pigeonhq/pigeon/internal/model"
	"github.com/pigeonhq/pigeon/internal/token"
)

func newKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "key",
		Aliases: []string{"apikey"},
		Short:   "Manage API keys in the local credential store",
	}

	cmd.AddCommand(newKeyCreateCmd())
	cmd.AddCommand(newKeyListCmd())
	cmd.AddCommand(newKeyRevokeCmd())

	return cmd
}

// ---------- key create ----------

func newKeyCreateCmd() *cobra.Command {
	var (
		serviceID string
		name      string
		expiry    string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new API key",
		Long:  "Generate a fresh API-key secret for a service. The plaintext secret is shown once and cannot be retrieved again.",
		Example: `  pigeon key create --service 71889e76-2a7f-49b4-9f00-8d2c9c10eeb1 --name "CI pipeline"
  pigeon key create --service 71889e76-2a7f-49b4-9f00-8d2c9c10eeb1 --expiry 2027-01-01`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyCreate(cmd, serviceID, name, expiry)
		},
	}

	cmd.Flags().StringVar(&serviceID, "service", "", "service UUID the key belongs to (required)")
	cmd.Flags().StringVar(&name, "name", "", "human-readable label for the key")
	cmd.Flags().StringVar(&expiry, "expiry", "", "expiry date, YYYY-MM-DD (UTC)")
	cmd.MarkFlagRequired("service")

	return cmd
}

func runKeyCreate(cmd *cobra.Command, serviceID, name, expiry string) error {
	sid, err := uuid.Parse(serviceID)
	if err != nil {
		return fmt.Errorf("invalid service id %q", serviceID)
	}

	var expiryDate *time.Time
	if expiry != "" {
		t, err := time.ParseInLocation("2006-01-02", expiry, time.UTC)
		if err != nil {
			return fmt.Errorf("invalid expiry date %q, want YYYY-MM-DD", expiry)
		}
		expiryDate = &t
	}

	store, err := openCredStore()
	if err != nil {
		return fmt.Errorf("open credential store: %w", err)
	}
	defer store.Close()

	ctx := context.Background()
	if _, err := store.GetService(ctx, sid); err != nil {
		return fmt.Errorf("service %s: %w", sid, err)
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return fmt.Errorf("generate secret: %w", err)
	}
	plaintext := base64.RawURLEncoding.EncodeToString(raw)

	key := model.APIKey{
		ID:            uuid.Must(uuid.NewV7()),
		ServiceID:     sid,
		Name:          name,
		SecretEncoded: token.WrapSecret(plaintext),
		KeyType:       model.KeyTypeNormal,
		ExpiryDate:    expiryDate,
		CreatedAt:     time.Now().UTC(),
	}
	if err := store.CreateAPIKey(ctx, &key); err != nil {
		return fmt.Errorf("create API key: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "API key created. The secret is shown once, store it now:")
	fmt.Fprintf(cmd.OutOrStdout(), "  id:     %s\n", key.ID)
	fmt.Fprintf(cmd.OutOrStdout(), "  secret: %s\n", plaintext)
	if expiryDate != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "  expiry: %s\n", expiryDate.Format("2006-01-02"))
	}
	return nil
}

// ---------- key list ----------

func newKeyListCmd() *cobra.Command {
	var serviceID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a service's API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			sid, err := uuid.Parse(serviceID)
			if err != nil {
				return fmt.Errorf("invalid service id %q", serviceID)
			}

			store, err := openCredStore()
			if err != nil {
				return fmt.Errorf("open credential store: %w", err)
			}
			defer store.Close()

			keys, err := store.GetAPIKeys(context.Background(), sid)
			if err != nil {
				return fmt.Errorf("list API keys: %w", err)
			}
			if len(keys) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No API keys.")
				return nil
			}
			for _, key := range keys {
				state := "active"
				switch {
				case key.Revoked:
					state = "revoked"
				case key.Expired(time.Now()):
					state = "expired"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-20s %s\n", key.ID, key.Name, state)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&serviceID, "service", "", "service UUID (required)")
	cmd.MarkFlagRequired("service")

	return cmd
}

// ---------- key revoke ----------

func newKeyRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <key-id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid key id %q", args[0])
			}

			store, err := openCredStore()
			if err != nil {
				return fmt.Errorf("open credential store: %w", err)
			}
			defer store.Close()

			if err := store.RevokeAPIKey(context.Background(), id); err != nil {
				return fmt.Errorf("revoke API key: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Revoked %s\n", id)
			return nil
		},
	}
}
