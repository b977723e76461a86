// ABOUTME: Entry point for greet-react, the Slack app that reacts to watched users' messages
// ABOUTME: Provides the serve, health, and rules subcommands

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/pflag"

	"github.com/2389/greet-react/internal/config"
	"github.com/2389/greet-react/internal/server"
	"github.com/2389/greet-react/internal/telemetry"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const banner = `
                       _                                _
  __ _ _ __ ___  ___| |_      _ __ ___  __ _  ___| |_
 / _' | '__/ _ \/ _ \ __|____| '__/ _ \/ _' |/ __| __|
| (_| | | |  __/  __/ ||_____| | |  __/ (_| | (__| |_
 \__, |_|  \___|\___|\__|    |_|  \___|\__,_|\___|\__|
 |___/
`

func usage() {
	fmt.Println("Usage: greet-react <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                  Start the Slack webhook server")
	fmt.Println("  health [--ready]       Check a running server")
	fmt.Println("  rules --team TEAM      Print a team's watch rules")
	fmt.Println()
	fmt.Println("Every command accepts --config PATH.")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	args := os.Args[2:]
	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx, args)
	case "health":
		err = runHealth(ctx, args)
	case "rules":
		err = runRules(ctx, args)
	case "version", "--version":
		fmt.Println(version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig resolves and loads the configuration. With no file it falls
// back to environment variables alone. local selects the reduced checks used
// by commands that never talk to Slack.
func loadConfig(flagPath string, local bool) (*config.Config, string, error) {
	path := config.ResolvePath(flagPath)
	if path == "" {
		fromEnv := config.FromEnv
		if local {
			fromEnv = config.FromEnvLocal
		}
		cfg, err := fromEnv()
		if err != nil {
			return nil, "", fmt.Errorf("loading config from environment: %w", err)
		}
		return cfg, "(environment)", nil
	}

	load := config.Load
	if local {
		load = config.LoadLocal
	}
	cfg, err := load(path)
	if err != nil {
		return nil, "", fmt.Errorf("loading config: %w", err)
	}
	return cfg, path, nil
}

func runServe(ctx context.Context, args []string) error {
	flags := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	configFlag := flags.StringP("config", "c", "", "path to config file")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, configPath, err := loadConfig(*configFlag, false)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s\n", cfg.Database.Path)
	if !cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	}
	green.Print("    ▶ ")
	fmt.Printf("Install:   ")
	if cfg.Slack.OAuthEnabled() {
		fmt.Println("enabled")
	} else {
		yellow.Println("disabled (set slack.client_id and slack.client_secret)")
	}

	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.Funnel {
			yellow.Print(" [funnel]")
		}
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	}
	if cfg.Tracing.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tracing:   %s\n", cfg.Tracing.Endpoint)
	}

	fmt.Println()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Tracing, version)
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("flushing traces", "error", err)
		}
	}()

	logger.Info("starting greet-react",
		"version", version,
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
	)

	srv, err := server.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	return srv.Run(ctx)
}

func runHealth(ctx context.Context, args []string) error {
	flags := pflag.NewFlagSet("health", pflag.ContinueOnError)
	configFlag := flags.StringP("config", "c", "", "path to config file")
	ready := flags.Bool("ready", false, "check readiness (database) instead of liveness")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, _, err := loadConfig(*configFlag, true)
	if err != nil {
		return err
	}

	path := "/health"
	if *ready {
		path = "/ready"
	}
	url := "http://" + localAddr(cfg.Server.HTTPAddr) + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	if *ready {
		fmt.Println("ready")
	} else {
		fmt.Println("healthy")
	}
	return nil
}

// localAddr turns a listen address such as ":3000" into one we can dial.
func localAddr(listen string) string {
	if strings.HasPrefix(listen, ":") {
		return "127.0.0.1" + listen
	}
	if strings.HasPrefix(listen, "0.0.0.0:") {
		return "127.0.0.1" + strings.TrimPrefix(listen, "0.0.0.0")
	}
	return listen
}
