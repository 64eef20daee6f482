package config

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/DoyleJ11/partyroom-backend/internal/engine"
)

const EnvPrefix = "PARTYROOM"

type Config struct {
	Bind      string
	Port      int
	LogLevel  string
	LogFormat string

	IdentifyTimeout    time.Duration
	CountdownSeconds   int
	FastForwardFloor   int
	TiePolicy          string
	AutoStartCountdown bool

	OutboxSize     int
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	OriginPatterns []string

	DatabaseURL string
	PublicURL   string
}

func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format %q (json or console)", c.LogFormat)
	}
	if c.IdentifyTimeout <= 0 {
		return errors.New("identify-timeout must be positive")
	}
	if c.CountdownSeconds < 1 {
		return fmt.Errorf("countdown-seconds must be at least 1: %d", c.CountdownSeconds)
	}
	if c.FastForwardFloor < 0 || c.FastForwardFloor > c.CountdownSeconds {
		return fmt.Errorf("fast-forward-floor must be between 0 and countdown-seconds: %d", c.FastForwardFloor)
	}
	if !engine.TiePolicy(c.TiePolicy).Valid() {
		return fmt.Errorf("invalid tie policy %q (stable or reroll)", c.TiePolicy)
	}
	if c.OutboxSize < 1 {
		return fmt.Errorf("outbox-size must be at least 1: %d", c.OutboxSize)
	}
	if c.WriteTimeout <= 0 {
		return errors.New("write-timeout must be positive")
	}
	if c.IdleTimeout < 0 {
		return errors.New("idle-timeout cannot be negative")
	}
	if c.PublicURL != "" {
		u, err := url.Parse(c.PublicURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid public-url %q", c.PublicURL)
		}
	}
	return nil
}

func (c *Config) Addr() string {
	return net.JoinHostPort(c.Bind, strconv.Itoa(c.Port))
}

// JoinBaseURL is where participants open the player page. It is empty when
// no public URL is configured, in which case the link is derived from each
// request's host.
func (c *Config) JoinBaseURL() string {
	return strings.TrimSuffix(strings.TrimSpace(c.PublicURL), "/")
}

func (c *Config) Rules() engine.Rules {
	return engine.Rules{
		CountdownSec:       c.CountdownSeconds,
		FastForwardFloor:   c.FastForwardFloor,
		TiePolicy:          engine.TiePolicy(c.TiePolicy),
		AutoStartCountdown: c.AutoStartCountdown,
	}
}

// LoadDotEnv loads KEY=VALUE files into the environment. Missing files are
// skipped and variables already set win.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// NewCommand builds the root command. Every flag can also be set through
// PARTYROOM_<FLAG> (dashes become underscores), including from a .env file.
func NewCommand(cfg *Config, version string, run func(ctx context.Context, cfg *Config) error) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "partyroom",
		Short:         "Realtime coordinator for party game rooms.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		SilenceUsage:  true,
		Version:       version,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.Bind, "bind", "b", "0.0.0.0", "address to bind to (env: PARTYROOM_BIND)")
	fs.IntVarP(&cfg.Port, "port", "p", 3000, "port to listen on (env: PARTYROOM_PORT)")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "debug, info, warn or error (env: PARTYROOM_LOG_LEVEL)")
	fs.StringVar(&cfg.LogFormat, "log-format", "json", "json or console (env: PARTYROOM_LOG_FORMAT)")
	fs.DurationVar(&cfg.IdentifyTimeout, "identify-timeout", 2*time.Second, "time before an unidentified connection becomes a presenter (env: PARTYROOM_IDENTIFY_TIMEOUT)")
	fs.IntVar(&cfg.CountdownSeconds, "countdown-seconds", 60, "character selection countdown length (env: PARTYROOM_COUNTDOWN_SECONDS)")
	fs.IntVar(&cfg.FastForwardFloor, "fast-forward-floor", 10, "countdown value to jump to once everyone is locked in (env: PARTYROOM_FAST_FORWARD_FLOOR)")
	fs.StringVar(&cfg.TiePolicy, "tie-policy", string(engine.TieStable), "stable or reroll (env: PARTYROOM_TIE_POLICY)")
	fs.BoolVar(&cfg.AutoStartCountdown, "auto-start-countdown", false, "start the countdown when the first player joins (env: PARTYROOM_AUTO_START_COUNTDOWN)")
	fs.IntVar(&cfg.OutboxSize, "outbox-size", 32, "messages buffered per connection before it is dropped (env: PARTYROOM_OUTBOX_SIZE)")
	fs.DurationVar(&cfg.WriteTimeout, "write-timeout", 3*time.Second, "websocket write deadline (env: PARTYROOM_WRITE_TIMEOUT)")
	fs.DurationVar(&cfg.IdleTimeout, "idle-timeout", 0, "close connections silent for this long, 0 to disable (env: PARTYROOM_IDLE_TIMEOUT)")
	fs.StringSliceVar(&cfg.OriginPatterns, "origin-patterns", nil, "extra websocket origins to accept, e.g. localhost:* (env: PARTYROOM_ORIGIN_PATTERNS)")
	fs.StringVar(&cfg.DatabaseURL, "database-url", "", "postgres DSN for the session journal, empty to disable (env: PARTYROOM_DATABASE_URL)")
	fs.StringVar(&cfg.PublicURL, "public-url", "", "externally reachable base URL used in join QR codes (env: PARTYROOM_PUBLIC_URL)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("partyroom v{{.Version}}\n")

	return cmd
}
