package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/saeid-a/ConsultBack/internal/models"
	"github.com/saeid-a/ConsultBack/pkg/utils"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devtoken",
		Short: "Mint JWTs for local testing of the REST and signaling APIs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, _ := cmd.Flags().GetInt64("user")
			role, _ := cmd.Flags().GetString("role")
			ttl, _ := cmd.Flags().GetDuration("ttl")
			secret, _ := cmd.Flags().GetString("secret")

			token, err := mintToken(userID, role, secret, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	_ = godotenv.Load()
	cmd.Flags().Int64("user", 0, "User id placed in the token")
	cmd.Flags().String("role", models.RolePatient, "Role claim: patient or doctor")
	cmd.Flags().Duration("ttl", utils.DefaultTokenTTL, "Token lifetime")
	cmd.Flags().String("secret", os.Getenv("JWT_SECRET"), "Signing secret (defaults to JWT_SECRET)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func mintToken(userID int64, role string, secret string, ttl time.Duration) (string, error) {
	if userID <= 0 {
		return "", fmt.Errorf("--user must be a positive id")
	}
	if role != models.RolePatient && role != models.RoleDoctor {
		return "", fmt.Errorf("--role must be %s or %s", models.RolePatient, models.RoleDoctor)
	}
	if secret == "" {
		return "", fmt.Errorf("--secret or JWT_SECRET is required")
	}
	if ttl <= 0 {
		return "", fmt.Errorf("--ttl must be positive")
	}
	return utils.GenerateTokenWithTTL(strconv.FormatInt(userID, 10), role, secret, ttl)
}
