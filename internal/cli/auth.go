package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/sakif/movieshelf/internal/auth"
	"github.com/sakif/movieshelf/internal/config"
)

// NewHashPasswordCommand creates the hash-password command.
func NewHashPasswordCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print a bcrypt hash for ADMIN_PASSWORD_HASH",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)

			hash, err := auth.NewPasswordService().Hash(args[0])
			if err != nil {
				return out.Error(WrapExitError(ExitCommandError, "hashing password", err))
			}

			return out.Success(map[string]string{"hash": hash}, func(w io.Writer) {
				fmt.Fprintln(w, hash)
			})
		},
	}
}

// NewTokenCommand creates the token command.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		ttl     time.Duration
		subject string
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an API token signed with JWT_SECRET",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)

			cfg, err := config.Load(rootOpts.ConfigPath)
			if err != nil {
				return out.Error(WrapExitError(ExitCommandError, "loading config", err))
			}
			if cfg.Auth.JWTSecret == "" {
				return out.Error(WrapExitError(ExitCommandError, "minting token", errors.New("JWT_SECRET is not set")))
			}

			tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret)
			if err != nil {
				return out.Error(WrapExitError(ExitCommandError, "minting token", err))
			}
			token, err := tokens.GenerateWithDuration(subject, ttl)
			if err != nil {
				return out.Error(WrapExitError(ExitCommandError, "minting token", err))
			}

			expires := time.Now().Add(ttl).UTC()
			data := map[string]any{"token": token, "subject": subject, "expiresAt": expires}
			return out.Success(data, func(w io.Writer) {
				fmt.Fprintln(w, token)
				out.VerboseLog("subject %s, expires %s", subject, expires.Format(time.RFC3339))
			})
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", auth.DefaultTTL, "token lifetime")
	cmd.Flags().StringVar(&subject, "subject", auth.AdminSubject, "token subject")

	return cmd
}
