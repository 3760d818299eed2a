/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Seednode/whoswho/games/whoswho/kv"
)

type Config struct {
	bind           string
	clientID       string
	clientSecret   string
	cookieSecret   string
	market         string
	port           int
	prefix         string
	profile        bool
	sessionTimeout time.Duration
	store          string
	tlsCert        string
	tlsKey         string
	tokenEndpoint  string
	verbose        bool
	version        bool
}

// loadDotEnv reads KEY=value pairs from path into the environment, without
// overriding variables that are already set. A missing file is not an error.
func loadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if !kv.SupportedScheme(c.store) {
		return fmt.Errorf("invalid --store %q (scheme must be one of %s)", c.store, strings.Join(kv.Schemes, ", "))
	}
	if (c.clientID == "") != (c.clientSecret == "") {
		return errors.New("both --client-id and --client-secret must be provided together")
	}
	if c.clientID == "" && c.tokenEndpoint == "" {
		return errors.New("one of --token-endpoint or --client-id/--client-secret is required")
	}
	if c.sessionTimeout < 0 {
		return fmt.Errorf("invalid session timeout: %s", c.sessionTimeout)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("WHOSWHO")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "whoswho",
		Short:         "Guess the artist from a handful of preview clips.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: WHOSWHO_BIND)")
	fs.StringVar(&cfg.clientID, "client-id", "", "spotify client id, used with --client-secret instead of --token-endpoint (env: WHOSWHO_CLIENT_ID)")
	fs.StringVar(&cfg.clientSecret, "client-secret", "", "spotify client secret (env: WHOSWHO_CLIENT_SECRET)")
	fs.StringVar(&cfg.cookieSecret, "cookie-secret", "", "key used to sign session cookies; random if unset (env: WHOSWHO_COOKIE_SECRET)")
	fs.StringVar(&cfg.market, "market", "US", "market used when fetching top tracks (env: WHOSWHO_MARKET)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: WHOSWHO_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: WHOSWHO_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: WHOSWHO_PROFILE)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 60*time.Minute, "time before idle sessions are dropped from memory (env: WHOSWHO_SESSION_TIMEOUT)")
	fs.StringVar(&cfg.store, "store", "sqlite://whoswho.db", "where rounds are persisted: memory://, sqlite://path, postgres://..., valkey://host:port (env: WHOSWHO_STORE)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: WHOSWHO_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: WHOSWHO_TLS_KEY)")
	fs.StringVar(&cfg.tokenEndpoint, "token-endpoint", "", "url answering with {access_token, expires_in} (env: WHOSWHO_TOKEN_ENDPOINT)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: WHOSWHO_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: WHOSWHO_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("whoswho v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
