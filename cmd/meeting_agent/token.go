package main

import (
	"fmt"

	"github.com/jonathan/meeting-analyzer/internal/server"
	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for the HTTP API",
	Long:  "Sign a JWT with API_JWT_SECRET that the API accepts on /join, /join/stream, /analyze and /runs/{id}.",
	RunE:  runToken,
}

var (
	tokenSubject string
	tokenHours   int
)

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "cli", "Token subject (who the caller is)")
	tokenCmd.Flags().IntVar(&tokenHours, "hours", 0, "Lifetime in hours (overrides API_JWT_EXPIRATION_HOURS)")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, _ []string) error {
	if tokenSubject == "" {
		return fmt.Errorf("--subject must not be empty")
	}

	a, err := loadApp()
	if err != nil {
		return err
	}
	if !a.cfg.JWT.Enabled() {
		return fmt.Errorf("API_JWT_SECRET is required to mint tokens")
	}

	jwtConfig := a.cfg.JWT
	if cmd.Flags().Changed("hours") {
		if tokenHours < 1 {
			return fmt.Errorf("--hours must be at least 1, got %d", tokenHours)
		}
		jwtConfig.ExpirationHours = tokenHours
	}

	token, err := server.NewJWTService(&jwtConfig).GenerateToken(tokenSubject)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
