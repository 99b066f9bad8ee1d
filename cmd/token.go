package cmd

import (
	"errors"
	"fmt"
	"time"

	"DBAdminDO/internal/authz"
	"DBAdminDO/internal/models"
	"DBAdminDO/internal/pkg/config"
	"DBAdminDO/internal/pkg/jwt"
	"DBAdminDO/internal/utils/finder"

	"github.com/spf13/cobra"
)

var tokenOpts struct {
	user   string
	team   int64
	role   string
	expiry time.Duration
}

// tokenCmd issues a caller JWT signed with the configured secret
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API token for an operator",
	Example: `  dbadmin token --user alice --team 3 --role admin
  dbadmin token --user ci --team 3 --role viewer --expiry 1h`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !authz.IsRole(tokenOpts.role) {
			return fmt.Errorf("unknown role %q", tokenOpts.role)
		}
		if tokenOpts.team <= 0 {
			return errors.New("--team must be a positive team id")
		}

		path, err := finder.FindConfigFile(configPath, true)
		if err != nil {
			return err
		}
		config.LoadDotEnv()
		cfg, err := config.LoadConfig(path)
		if err != nil {
			return err
		}

		expiry := tokenOpts.expiry
		if expiry <= 0 {
			expiry = time.Duration(cfg.API.Auth.JWTExpiration) * time.Second
		}

		token, err := jwt.GenerateToken(&models.Caller{
			Username: tokenOpts.user,
			TeamID:   tokenOpts.team,
			Role:     tokenOpts.role,
		}, cfg.API.Auth.JWTSecret, cfg.API.Auth.Issuer, expiry)
		if err != nil {
			return fmt.Errorf("failed to generate token: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().StringVar(&tokenOpts.user, "user", "", "Operator username")
	tokenCmd.Flags().Int64Var(&tokenOpts.team, "team", 0, "Team id the token is scoped to")
	tokenCmd.Flags().StringVar(&tokenOpts.role, "role", authz.RoleViewer, "Team role: owner, admin, member or viewer")
	tokenCmd.Flags().DurationVar(&tokenOpts.expiry, "expiry", 0, "Token lifetime (defaults to api.auth.jwt_expiration)")
	_ = tokenCmd.MarkFlagRequired("user")
	_ = tokenCmd.MarkFlagRequired("team")
}
