// ABOUTME: Entry point for the ecomap-gateway API server
// ABOUTME: Subcommands serve, init, token, and health

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/ecomap-gateway/internal/auth"
	"github.com/2389/ecomap-gateway/internal/config"
	"github.com/2389/ecomap-gateway/internal/gateway"
	"github.com/2389/ecomap-gateway/internal/store"
)

// Version is set at build time.
var version = "dev"

const banner = `
                                                              _
  ___  ___ ___  _ __ ___   __ _ _ __         __ _  __ _| |_ _____      ____ _ _   _
 / _ \/ __/ _ \| '_ ' _ \ / _' | '_ \ _____ / _' |/ _' | __/ _ \ \ /\ / / _' | | | |
|  __/ (_| (_) | | | | | | (_| | |_) |_____| (_| | (_| | ||  __/\ V  V / (_| | |_| |
 \___|\___\___/|_| |_| |_|\__,_| .__/       \__, |\__,_|\__\___| \_/\_/ \__,_|\__, |
                               |_|          |___/                             |___/
`

// getConfigPath returns the path to the gateway config file.
// Priority: ECOMAP_CONFIG env var > XDG_CONFIG_HOME/ecomap/gateway.yaml > ~/.config/ecomap/gateway.yaml
func getConfigPath() string {
	if envPath := os.Getenv(config.EnvConfigPath); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "gateway.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "ecomap", "gateway.yaml")
}

// getDataPath returns the path to the ecomap data directory.
// Priority: XDG_DATA_HOME/ecomap > ~/.local/share/ecomap
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "ecomap")
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: ecomap-gateway <command>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve                Start the gateway server")
	fmt.Fprintln(w, "  init                 Create a new config file interactively")
	fmt.Fprintln(w, "  token --email EMAIL  Issue a session token for an existing user")
	fmt.Fprintln(w, "  health               Check gateway health")
	fmt.Fprintln(w, "  version              Print the gateway version")
}

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stdout)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit(os.Stdin, os.Stdout)
	case "token":
		err = runToken(ctx, os.Args[2:], os.Stdout)
	case "health":
		err = runHealth(ctx)
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging, os.Stdout)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s (%s)\n", cfg.Database.Path, cfg.Database.Driver)
	if cfg.Metrics.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Metrics:   %s\n", cfg.Metrics.Path)
	}
	fmt.Println()

	logger.Info("starting ecomap-gateway",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"token_ttl", cfg.Auth.TokenTTL,
	)

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

// parseEmailFlag accepts "--email value", "--email=value", "-e value", and "-e=value".
func parseEmailFlag(args []string) (string, error) {
	var email string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--email" || arg == "-e":
			if i+1 >= len(args) {
				return "", fmt.Errorf("%s requires a value", arg)
			}
			email = args[i+1]
			i++
		case strings.HasPrefix(arg, "--email="):
			email = strings.TrimPrefix(arg, "--email=")
		case strings.HasPrefix(arg, "-e="):
			email = strings.TrimPrefix(arg, "-e=")
		case strings.HasPrefix(arg, "-"):
			return "", fmt.Errorf("unknown flag: %s", arg)
		default:
			return "", fmt.Errorf("unexpected argument: %s", arg)
		}
	}

	email = strings.TrimSpace(email)
	if email == "" {
		return "", errors.New("--email flag is required")
	}
	return email, nil
}

// runToken prints a token for an existing user, signed with the configured secret.
func runToken(ctx context.Context, args []string, out io.Writer) error {
	email, err := parseEmailFlag(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	return issueToken(ctx, cfg, email, out)
}

func issueToken(ctx context.Context, cfg *config.Config, email string, out io.Writer) error {
	codec, err := auth.NewCodec(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}

	s, err := store.Open(cfg.Database.Driver, cfg.Database.Path)
	if err != nil {
		return err
	}
	defer s.Close()

	user, err := s.FindByIdentifier(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no user registered with email %q", email)
		}
		return err
	}

	token, err := codec.Encode(user.Email, nil)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, token)
	return nil
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	return checkHealth(ctx, "http://"+cfg.Server.HTTPAddr)
}

func checkHealth(ctx context.Context, baseURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
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

	fmt.Println("healthy")
	return nil
}

func prompt(reader *bufio.Reader, out io.Writer, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(out, "%s [%s]: ", question, defaultVal)
	} else {
		fmt.Fprintf(out, "%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		// On EOF or error, return default
		fmt.Fprintln(out)
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
