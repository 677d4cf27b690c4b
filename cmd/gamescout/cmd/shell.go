package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	gserrors "github.com/Aman-CERP/gamescout/internal/errors"
	"github.com/Aman-CERP/gamescout/internal/output"
	"github.com/Aman-CERP/gamescout/internal/watcher"
)

const shellPrompt = "gamescout> "

const shellHelp = `Type a query to search. Commands:
  :platform [name]   set or clear the platform filter
  :year [yyyy]       set or clear the year filter
  :genre [name]      set or clear the genre filter
  :explain on|off    toggle explain output
  :reload            reload the rules file
  :stats             show query metrics for this session
  :help              show this help
  :quit              leave the shell`

func newShellCmd() *cobra.Command {
	var noWatch bool

	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Interactive search session",
		Long: `Start an interactive search session.

The catalog, cache and rules stay loaded between queries, so repeated
searches are served from the response cache. When a rules file is
configured it is watched and reloaded on change.

Examples:
  gamescout shell
  echo "zelda" | gamescout shell
  gamescout shell --no-watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(cmd.Context(), cmd, noWatch)
		},
	}

	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "Do not reload the rules file on change")

	return cmd
}

// shell is one interactive session.
type shell struct {
	app    *app
	out    *output.Writer
	raw    io.Writer
	prompt bool
	opts   searchOptions
}

func runShell(ctx context.Context, cmd *cobra.Command, noWatch bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.RulesPath != "" && !noWatch {
		if err := watchRules(ctx, a, cfg.RulesPath); err != nil {
			// Searching still works on the rules already loaded.
			slog.Warn("rules_watch_unavailable", gserrors.LogAttrs(err)...)
		}
	}

	s := &shell{
		app:    a,
		out:    output.New(cmd.OutOrStdout()),
		raw:    cmd.OutOrStdout(),
		prompt: output.IsTTY(cmd.OutOrStdout()),
	}
	return s.run(ctx, cmd.InOrStdin())
}

// watchRules reloads the engine's rules whenever path changes. A deleted
// file leaves the running rules in place.
func watchRules(ctx context.Context, a *app, path string) error {
	w, err := watcher.NewFileWatcher([]string{path}, watcher.DefaultOptions())
	if err != nil {
		return err
	}
	go func() { _ = w.Start(ctx) }()
	go func() {
		for batch := range w.Events() {
			for _, ev := range batch {
				if ev.Operation == watcher.OpDelete {
					slog.Warn("rules_file_removed", slog.String("path", ev.Path))
					continue
				}
				_ = a.engine.ReloadRules(ev.Path)
			}
		}
	}()
	go func() {
		for err := range w.Errors() {
			slog.Warn("rules_watch_error", slog.String("error", err.Error()))
		}
	}()
	slog.Info("rules_watch_started",
		slog.String("path", path),
		slog.String("mode", w.Mode()))
	return nil
}

func (s *shell) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for {
		if s.prompt {
			_, _ = fmt.Fprint(s.raw, shellPrompt)
		}
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ":") {
			if quit := s.command(line); quit {
				return nil
			}
			continue
		}
		s.search(ctx, line)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	if err := scanner.Err(); err != nil {
		return gserrors.New(gserrors.ErrCodeInvalidInput, "failed to read input", err)
	}
	return nil
}

func (s *shell) search(ctx context.Context, query string) {
	res, err := s.app.engine.Search(ctx, query, s.opts.engineOptions())
	if err != nil {
		s.out.Errorf("%s", err.Error())
		return
	}
	s.out.Results(query, res)
	s.out.Explain(res.Explain)
}

// command handles a ":" line and reports whether the session should end.
func (s *shell) command(line string) bool {
	name, arg, _ := strings.Cut(strings.TrimPrefix(line, ":"), " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "q", "quit", "exit":
		return true
	case "help", "h":
		_, _ = fmt.Fprintln(s.raw, shellHelp)
	case "platform":
		s.opts.platform = arg
		s.showFilter("platform", arg)
	case "genre":
		s.opts.genre = arg
		s.showFilter("genre", arg)
	case "year":
		if arg == "" {
			s.opts.year = 0
			s.showFilter("year", "")
			break
		}
		year, err := strconv.Atoi(arg)
		if err != nil || year <= 0 {
			s.out.Errorf("invalid year %q", arg)
			break
		}
		s.opts.year = year
		s.showFilter("year", arg)
	case "explain":
		switch arg {
		case "on", "":
			s.opts.explain = true
		case "off":
			s.opts.explain = false
		default:
			s.out.Errorf("usage: :explain on|off")
			return false
		}
		s.out.Successf("explain %s", onOff(s.opts.explain))
	case "reload":
		if err := s.app.engine.ReloadRules(s.app.cfg.RulesPath); err != nil {
			s.out.Errorf("reload failed: %s", err.Error())
			break
		}
		s.out.Success("rules reloaded")
	case "stats":
		if s.app.metrics == nil {
			s.out.Warning("telemetry is disabled")
			break
		}
		s.out.Metrics(s.app.metrics.Snapshot())
	default:
		s.out.Errorf("unknown command :%s (try :help)", name)
	}
	return false
}

func (s *shell) showFilter(name, value string) {
	if value == "" {
		s.out.Successf("%s filter cleared", name)
		return
	}
	s.out.Successf("%s = %s", name, value)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
