package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/pigeonhq/pigeon/internal/auth"
	"github.com/pigeonhq/pigeon/internal/token"
)

func newTokenCmd() *cobra.Command {
	var (
		issuer    string
		secret    string
		algorithm string
		ttl       time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token",
		Long: `Mint a signed bearer token for calling the gateway. Use --issuer admin
for a platform-admin token, or a service UUID for a service token signed
with one of that service's API-key secrets. If --secret is omitted the
secret is read from the terminal without echo.`,
		Example: `  pigeon token --issuer admin
  pigeon token --issuer 71889e76-2a7f-49b4-9f00-8d2c9c10eeb1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToken(cmd, issuer, secret, algorithm, ttl)
		},
	}

	cmd.Flags().StringVar(&issuer, "issuer", "", "token issuer: 'admin' or a service UUID (required)")
	cmd.Flags().StringVar(&secret, "secret", "", "signing secret (prompted if omitted)")
	cmd.Flags().StringVar(&algorithm, "algorithm", "HS256", "HMAC signing algorithm")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Minute, "token lifetime")
	cmd.MarkFlagRequired("issuer")

	return cmd
}

func runToken(cmd *cobra.Command, issuer, secret, algorithm string, ttl time.Duration) error {
	if issuer == "admin" {
		issuer = auth.AdminIssuer
	}

	if secret == "" {
		fmt.Fprint(cmd.ErrOrStderr(), "Signing secret: ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return fmt.Errorf("read secret: %w", err)
		}
		secret = strings.TrimSpace(string(raw))
	}
	if secret == "" {
		return fmt.Errorf("empty signing secret")
	}

	now := time.Now()
	exp := now.Add(ttl)
	tok, err := token.Encode(token.Claims{
		Issuer:    issuer,
		IssuedAt:  &now,
		ExpiresAt: &exp,
	}, []byte(secret), algorithm)
	if err != nil {
		return fmt.Errorf("mint token: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), tok)
	return nil
}
