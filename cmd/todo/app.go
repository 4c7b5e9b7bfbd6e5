package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/chetan-code/supatodo/internal/client"
	"github.com/chetan-code/supatodo/internal/models"
	"github.com/spf13/pflag"
	"golang.org/x/term"
)

var (
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	doneStyle    = lipgloss.NewStyle().Faint(true).Strikethrough(true)
	pendingStyle = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("11"))
	idStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	dueStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
)

type app struct {
	in *bufio.Reader
	// termFd is the terminal behind in, -1 when in is not one
	termFd   int
	out      io.Writer
	sessions *client.SessionManager
	store    *client.Store
}

type command struct {
	usage string
	// guarded commands need a session
	guarded bool
	run     func(a *app, ctx context.Context, args []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"signup":  {usage: "signup --email <email> [--password <pw>]", run: (*app).signUp},
		"signin":  {usage: "signin --email <email> [--password <pw>]", run: (*app).signIn},
		"signout": {usage: "signout", run: (*app).signOut},
		"whoami":  {usage: "whoami", guarded: true, run: (*app).whoami},
		"list":    {usage: "list [--filter all|pending|completed]", guarded: true, run: (*app).list},
		"add":     {usage: "add <task> [--due YYYY-MM-DD]", guarded: true, run: (*app).add},
		"toggle":  {usage: "toggle <id>", guarded: true, run: (*app).toggle},
		"edit":    {usage: "edit <id> <task> [--due YYYY-MM-DD]", guarded: true, run: (*app).edit},
		"rm":      {usage: "rm <id>", guarded: true, run: (*app).remove},
		"clear":   {usage: "clear", guarded: true, run: (*app).clear},
	}
}

func commandNames() string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func (a *app) dispatch(ctx context.Context, args []string) error {
	if len(args) == 0 {
		args = []string{"list"}
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("unknown command %q (commands: %s)", args[0], commandNames())
	}
	if cmd.guarded {
		location, _ := json.Marshal(args)
		if _, err := a.sessions.Require(string(location)); err != nil {
			if errors.Is(err, client.ErrSignInRequired) {
				return errors.New("not signed in: run todo signin --email <email>")
			}
			return err
		}
	}
	err := cmd.run(a, ctx, args[1:])
	if errors.Is(err, client.ErrSignInRequired) {
		return errors.New("session expired: run todo signin --email <email>")
	}
	return err
}

func newFlags(name string) *pflag.FlagSet {
	flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: todo %s\n", commands[name].usage)
		flags.PrintDefaults()
	}
	return flags
}

func (a *app) credentials(args []string, name string) (string, string, error) {
	flags := newFlags(name)
	email := flags.String("email", "", "account email")
	password := flags.String("password", "", "account password (default $TODO_PASSWORD, else prompt)")
	if err := flags.Parse(args); err != nil {
		return "", "", err
	}
	if *email == "" {
		return "", "", errors.New("--email is required")
	}
	pw := *password
	if pw == "" {
		pw = os.Getenv("TODO_PASSWORD")
	}
	if pw == "" {
		var err error
		if pw, err = a.readPassword(); err != nil {
			return "", "", err
		}
	}
	if pw == "" {
		return "", "", errors.New("password is required")
	}
	return *email, pw, nil
}

// readPassword prompts for a password, with echo off on a terminal.
func (a *app) readPassword() (string, error) {
	fmt.Fprint(a.out, "Password: ")
	if a.termFd >= 0 {
		b, err := term.ReadPassword(a.termFd)
		fmt.Fprintln(a.out)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(b), nil
	}
	line, err := a.in.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (a *app) signUp(ctx context.Context, args []string) error {
	email, pw, err := a.credentials(args, "signup")
	if err != nil {
		return err
	}
	res, err := a.sessions.SignUp(ctx, email, pw)
	if err != nil {
		return err
	}
	if res.PendingConfirmation {
		fmt.Fprintln(a.out, successStyle.Render("Check your email for the confirmation link!"))
		return nil
	}
	fmt.Fprintln(a.out, successStyle.Render("Signed up and signed in as "+email))
	return nil
}

func (a *app) signIn(ctx context.Context, args []string) error {
	email, pw, err := a.credentials(args, "signin")
	if err != nil {
		return err
	}
	returnTo, err := a.sessions.SignIn(ctx, email, pw)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, successStyle.Render("Signed in as "+email))

	var replay []string
	if returnTo == "" || json.Unmarshal([]byte(returnTo), &replay) != nil || len(replay) == 0 {
		return nil
	}
	return a.dispatch(ctx, replay)
}

func (a *app) signOut(ctx context.Context, args []string) error {
	if err := a.sessions.SignOut(ctx); err != nil {
		return err
	}
	a.store.Reset()
	fmt.Fprintln(a.out, successStyle.Render("Signed out"))
	return nil
}

func (a *app) whoami(ctx context.Context, args []string) error {
	s := a.sessions.Current()
	fmt.Fprintf(a.out, "id:    %s\nemail: %s\n", s.User.ID, s.User.Email)
	if len(s.User.Metadata) > 0 {
		meta, _ := json.Marshal(s.User.Metadata)
		fmt.Fprintf(a.out, "meta:  %s\n", meta)
	}
	return nil
}

func (a *app) list(ctx context.Context, args []string) error {
	flags := newFlags("list")
	filter := flags.String("filter", "all", "all, pending or completed")
	if err := flags.Parse(args); err != nil {
		return err
	}
	f, err := client.ParseFilter(*filter)
	if err != nil {
		return err
	}
	if err := a.store.Load(ctx); err != nil {
		return err
	}
	a.render(f)
	return nil
}

func parseDue(raw string) (*models.Date, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := models.ParseInputDate(raw)
	if err != nil {
		return nil, fmt.Errorf("--due %q: want YYYY-MM-DD", raw)
	}
	return &d, nil
}

func (a *app) add(ctx context.Context, args []string) error {
	flags := newFlags("add")
	due := flags.String("due", "", "due date, YYYY-MM-DD")
	if err := flags.Parse(args); err != nil {
		return err
	}
	date, err := parseDue(*due)
	if err != nil {
		return err
	}
	if err := a.store.Load(ctx); err != nil {
		return err
	}
	_, err = a.store.Add(ctx, strings.Join(flags.Args(), " "), date)
	return a.finish(err)
}

func (a *app) toggle(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: todo " + commands["toggle"].usage)
	}
	if err := a.store.Load(ctx); err != nil {
		return err
	}
	_, err := a.store.Toggle(ctx, args[0])
	return a.finish(err)
}

func (a *app) edit(ctx context.Context, args []string) error {
	flags := newFlags("edit")
	due := flags.String("due", "", "due date, YYYY-MM-DD (empty clears it)")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() < 2 {
		return errors.New("usage: todo " + commands["edit"].usage)
	}
	date, err := parseDue(*due)
	if err != nil {
		return err
	}
	if err := a.store.Load(ctx); err != nil {
		return err
	}
	_, err = a.store.Edit(ctx, flags.Arg(0), strings.Join(flags.Args()[1:], " "), date)
	return a.finish(err)
}

func (a *app) remove(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: todo " + commands["rm"].usage)
	}
	if err := a.store.Load(ctx); err != nil {
		return err
	}
	_, err := a.store.Delete(ctx, args[0])
	return a.finish(err)
}

func (a *app) clear(ctx context.Context, args []string) error {
	if err := a.store.Load(ctx); err != nil {
		return err
	}
	_, err := a.store.DeleteAll(ctx)
	return a.finish(err)
}

// finish prints the banner and the list after a change. Failures the
// store already turned into an error banner are not reported twice.
func (a *app) finish(err error) error {
	if errors.Is(err, client.ErrSignInRequired) {
		return err
	}
	if b, ok := a.store.Banner(); ok && err != nil && b.Kind == client.BannerError {
		a.render(client.FilterAll)
		return errors.New(b.Message)
	}
	if err != nil {
		return err
	}
	a.render(client.FilterAll)
	return nil
}

func (a *app) render(f client.Filter) {
	if b, ok := a.store.Banner(); ok && b.Kind == client.BannerSuccess {
		fmt.Fprintln(a.out, successStyle.Render(b.Message))
	}
	items := a.store.Visible(f)
	if len(items) == 0 {
		fmt.Fprintln(a.out, idStyle.Render("No tasks"))
		return
	}
	for _, it := range items {
		box, task := "[ ]", it.Task
		if it.Completed {
			box, task = "[x]", doneStyle.Render(it.Task)
		}
		if it.Pending {
			task = pendingStyle.Render(it.Task)
		}
		line := fmt.Sprintf("%s %s", box, task)
		if it.Date != nil {
			line += " " + dueStyle.Render("due "+it.Date.String())
		}
		fmt.Fprintf(a.out, "%s  %s\n", line, idStyle.Render(it.ID))
	}
}
