package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/satriahrh/mirrorvoice/internal/auth"
)

func newTokenCommand(opts *rootOptions) *cobra.Command {
	var clientID string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a display token for the websocket endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			issuer := auth.NewTokenIssuer(cfg.DisplayJWTSecret, cfg.DisplayTokenTTL)
			if !issuer.Enabled() {
				return errors.New("display_jwt_secret is not set, the display socket is unauthenticated")
			}
			if clientID == "" {
				clientID = uuid.NewString()
			}

			token, expiresAt, err := issuer.GenerateDisplayToken(clientID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "client_id: %s\nexpires_at: %s\ntoken: %s\n",
				clientID, expiresAt.Format(time.RFC3339), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&clientID, "client-id", "", "display identifier (random when empty)")
	return cmd
}
