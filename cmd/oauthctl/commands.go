package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/caarlos0/env/v10"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"biopaper-tutor/internal/oauth"
)

// oauthEnv es el subconjunto de configuración que necesita la CLI; no exige
// SESSION_SECRET ni credenciales del LLM.
type oauthEnv struct {
	AppBaseURL   string   `env:"APP_BASE_URL" envDefault:"http://localhost:8080"`
	BaseURL      string   `env:"OAUTH_BASE_URL" envDefault:"https://www.opensii.ai"`
	ClientID     string   `env:"OAUTH_CLIENT_ID"`
	ClientSecret string   `env:"OAUTH_CLIENT_SECRET"`
	PreauthKey   string   `env:"OAUTH_PREAUTH_KEY"`
	Scopes       []string `env:"OAUTH_SCOPES" envSeparator:"," envDefault:"read,write"`
}

func (e oauthEnv) redirectURI() string {
	return strings.TrimRight(e.AppBaseURL, "/") + "/api/auth/callback/oauth"
}

type registerFlags struct {
	preauthKey  string
	name        string
	description string
	scopes      []string
}

func newRootCmd() *cobra.Command {
	var (
		cfg     oauthEnv
		verbose bool
		logger  = zap.NewNop()
	)

	root := &cobra.Command{
		Use:           "oauthctl",
		Short:         "Manage the OAuth client used by biopaper-tutor",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := env.Parse(&cfg); err != nil {
				return err
			}
			if verbose {
				l, err := zap.NewDevelopment()
				if err != nil {
					return err
				}
				logger = l
			}
			return nil
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log provider calls")

	provider := func() *oauth.Provider {
		return oauth.NewProvider(cfg.BaseURL, cfg.ClientID, cfg.ClientSecret, cfg.Scopes, logger)
	}

	var reg registerFlags
	registerCmd := &cobra.Command{
		Use:   "register",
		Short: "Register a new OAuth client using a preauthorization key",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if reg.preauthKey == "" {
				reg.preauthKey = cfg.PreauthKey
			}
			return runRegister(cmd.Context(), cmd.OutOrStdout(), provider(), cfg, reg)
		},
	}
	registerCmd.Flags().StringVar(&reg.preauthKey, "preauth-key", "", "provider preauthorization key (defaults to OAUTH_PREAUTH_KEY)")
	registerCmd.Flags().StringVar(&reg.name, "name", oauth.DefaultClientName, "client name shown on the consent screen")
	registerCmd.Flags().StringVar(&reg.description, "description", oauth.DefaultClientDescription, "client description")
	registerCmd.Flags().StringSliceVar(&reg.scopes, "scope", nil, "scopes to request (repeatable, defaults to OAUTH_SCOPES)")

	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Check the configured client credentials with a client_credentials grant",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runVerify(cmd.Context(), cmd.OutOrStdout(), provider(), cfg)
		},
	}

	ensureCmd := &cobra.Command{
		Use:   "ensure",
		Short: "Verify the configured client and register a new one when it is invalid",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEnsure(cmd.Context(), cmd.OutOrStdout(), provider(), cfg)
		},
	}

	root.AddCommand(registerCmd, verifyCmd, ensureCmd)
	return root
}

var errInvalidClient = errors.New("configured OAuth client credentials are invalid")

func runRegister(ctx context.Context, out io.Writer, provider *oauth.Provider, cfg oauthEnv, flags registerFlags) error {
	if strings.TrimSpace(flags.preauthKey) == "" {
		return errors.New("a preauth key is required (--preauth-key or OAUTH_PREAUTH_KEY)")
	}
	scopes := flags.scopes
	if len(scopes) == 0 {
		scopes = cfg.Scopes
	}
	creds, err := provider.RegisterClient(ctx, oauth.Registration{
		ClientName:        flags.name,
		ClientDescription: flags.description,
		RedirectURIs:      []string{cfg.redirectURI()},
		Scopes:            scopes,
		PreauthKey:        flags.preauthKey,
	})
	if err != nil {
		return fmt.Errorf("register client: %w", err)
	}
	printCredentials(out, creds)
	return nil
}

func runVerify(ctx context.Context, out io.Writer, provider *oauth.Provider, cfg oauthEnv) error {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return errors.New("OAUTH_CLIENT_ID and OAUTH_CLIENT_SECRET must be set")
	}
	if !provider.VerifyClient(ctx, cfg.ClientID, cfg.ClientSecret) {
		return errInvalidClient
	}
	fmt.Fprintf(out, "client %s is valid\n", cfg.ClientID)
	return nil
}

func runEnsure(ctx context.Context, out io.Writer, provider *oauth.Provider, cfg oauthEnv) error {
	if cfg.ClientID != "" && cfg.ClientSecret != "" && provider.VerifyClient(ctx, cfg.ClientID, cfg.ClientSecret) {
		fmt.Fprintf(out, "client %s is valid\n", cfg.ClientID)
		return nil
	}
	if cfg.PreauthKey == "" {
		return fmt.Errorf("%w and OAUTH_PREAUTH_KEY is not set", errInvalidClient)
	}
	fmt.Fprintln(out, "configured client missing or invalid, registering a new one")
	return runRegister(ctx, out, provider, cfg, registerFlags{
		preauthKey:  cfg.PreauthKey,
		name:        oauth.DefaultClientName,
		description: oauth.DefaultClientDescription,
	})
}

func printCredentials(out io.Writer, creds oauth.ClientCredentials) {
	fmt.Fprintln(out, "# add to your .env")
	fmt.Fprintf(out, "OAUTH_CLIENT_ID=%s\n", creds.ClientID)
	fmt.Fprintf(out, "OAUTH_CLIENT_SECRET=%s\n", creds.ClientSecret)
}
