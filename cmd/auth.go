package cmd

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"planpush/internal/config"
	"planpush/internal/google"
)

func newAuthCmd() *cobra.Command {
	cfg := config.Default()

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize access to Google Calendar",
		Long: `Run the out-of-band Google OAuth flow.

Prints a consent URL; after approving access, paste the authorization
code back into the terminal. The token is stored under the data
directory and reused by serve and schedule.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			applyEnvFallbacks(cmd, &cfg)
			return runAuth(cmd, cfg)
		},
	}

	registerCommonFlags(cmd, &cfg)

	return cmd
}

func runAuth(cmd *cobra.Command, cfg config.Config) error {
	oauthCfg := cfg.OAuth()
	oauthCfg.RedirectURL = google.OOBRedirectURL
	if err := oauthCfg.Validate(); err != nil {
		return err
	}

	cmd.Println("Open the following URL in your browser and approve access:")
	cmd.Println()
	cmd.Println("  " + oauthCfg.AuthCodeURL("state-token"))
	cmd.Println()
	cmd.Print("Enter the authorization code: ")

	reader := bufio.NewReader(cmd.InOrStdin())
	code, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("failed to read authorization code: %w", err)
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return fmt.Errorf("no authorization code entered")
	}

	token, err := oauthCfg.Exchange(context.Background(), code)
	if err != nil {
		return err
	}

	provider := google.NewFileTokenProvider(cfg.DataDir)
	if err := provider.Save(token); err != nil {
		return err
	}

	cmd.Println("Authorization complete. Token stored.")
	return nil
}
