// Command todo is a terminal client for the todo API.
//
//	todo signup --email you@example.com
//	todo signin --email you@example.com
//	todo list --filter pending
//	todo add "buy milk" --due 2024-01-01
//	todo toggle <id>
//	todo edit <id> "buy oat milk"
//	todo rm <id>
//	todo clear
//	todo whoami
//	todo signout
//
// Settings come from the environment (or .env): SUPABASE_URL,
// SUPABASE_ANON_KEY, TODO_API_URL, TODO_SESSION_FILE.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/chetan-code/supatodo/internal/client"
	"github.com/chetan-code/supatodo/internal/config"
	"github.com/chetan-code/supatodo/internal/supabase"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"golang.org/x/term"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("todo", pflag.ContinueOnError)
	flags.SetInterspersed(false)
	configPath := flags.String("config", "", "path to a YAML config file (default $TODO_CONFIG)")
	verbose := flags.BoolP("verbose", "v", false, "log requests and session changes to stderr")
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: todo [--config file] [--verbose] <command> [args]\n\ncommands: %s\n\n", commandNames())
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	setupSlog(*verbose)
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("environment_var_load_failure", "error", err)
	}

	cfg, err := config.LoadClient(config.FilePath(*configPath))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := newApp(ctx, cfg, os.Stdin, os.Stdout)
	if err != nil {
		return err
	}
	return a.dispatch(ctx, flags.Args())
}

func setupSlog(verbose bool) {
	if !verbose {
		slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
		return
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
}

func newApp(ctx context.Context, cfg *config.ClientConfig, in io.Reader, out io.Writer) (*app, error) {
	httpClient := &http.Client{Timeout: 15 * time.Second}
	provider, err := supabase.New(cfg.SupabaseURL, cfg.AnonKey, httpClient)
	if err != nil {
		return nil, err
	}

	hashKey, blockKey, err := sessionKeys(cfg)
	if err != nil {
		return nil, err
	}
	sessions := client.NewSessionManager(supabase.NewAuth(provider), client.NewFileStorage(cfg.SessionFile, hashKey, blockKey))
	if err := sessions.Restore(); err != nil {
		//an unreadable session file just means signing in again
		slog.Warn("session_restore_failed", "error", err)
	}

	api, err := client.NewAPIClient(cfg.APIURL, sessions.TokenSource(ctx), nil)
	if err != nil {
		return nil, err
	}
	termFd := -1
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		termFd = int(f.Fd())
	}
	return &app{
		in:       bufio.NewReader(in),
		termFd:   termFd,
		out:      out,
		sessions: sessions,
		store:    client.NewStore(api),
	}, nil
}

func sessionKeys(cfg *config.ClientConfig) ([]byte, []byte, error) {
	if cfg.SessionSecret != "" {
		hashKey, blockKey := client.KeysFromSecret(cfg.SessionSecret)
		return hashKey, blockKey, nil
	}
	return client.LoadOrCreateKeys(filepath.Join(filepath.Dir(cfg.SessionFile), "session.key"))
}
