package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/hpungsan/sieve/internal/bot"
	"github.com/hpungsan/sieve/internal/candidate"
	"github.com/hpungsan/sieve/internal/config"
	"github.com/hpungsan/sieve/internal/db"
	"github.com/hpungsan/sieve/internal/errors"
	"github.com/hpungsan/sieve/internal/logging"
	"github.com/hpungsan/sieve/internal/mcp"
	"github.com/hpungsan/sieve/internal/metrics"
	"github.com/hpungsan/sieve/internal/telegram"
	"github.com/hpungsan/sieve/internal/todoist"
	"github.com/hpungsan/sieve/internal/triage"
	"github.com/hpungsan/sieve/internal/vars"
	"github.com/hpungsan/sieve/internal/web"
	"github.com/hpungsan/sieve/internal/workflow"
)

const (
	// maxStdinBytes bounds piped input for classify and vars set.
	maxStdinBytes = 1 << 20

	pollBackoff = 5 * time.Second
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(baseDir string, cfg *config.Config) *cli.App {
	app := &cli.App{
		Name:    "sieve",
		Usage:   "Telegram message triage into Todoist drafts",
		Version: Version,
		Commands: []*cli.Command{
			runCmd(baseDir, cfg),
			mcpCmd(baseDir, cfg),
			classifyCmd(cfg),
			candidatesCmd(baseDir, cfg),
			varsCmd(baseDir, cfg),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// runCmd creates the run command.
func runCmd(baseDir string, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Poll Telegram and run the approval workflow",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "web", Usage: "Also serve the read-only dashboard"},
		},
		Action: func(c *cli.Context) error {
			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := runService(ctx, baseDir, cfg, c.Bool("web")); err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

// runService wires the bot and blocks until ctx is cancelled.
func runService(ctx context.Context, baseDir string, cfg *config.Config, withWeb bool) error {
	logger, err := logging.NewLogger(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return errors.NewInvalidRequest(err.Error())
	}
	defer func() { _ = logger.Sync() }()

	if strings.TrimSpace(cfg.TelegramToken) == "" {
		return errors.NewConfigurationMissing("TELEGRAM_BOT_TOKEN")
	}

	store, closeVars, err := openVars(baseDir, cfg)
	if err != nil {
		return err
	}
	defer closeVars()

	ledger, err := loadLedger(ctx, store, cfg.CandidateCap)
	if err != nil {
		logger.Warn(ctx, "stored candidates unreadable, starting empty",
			zap.String("variable", candidate.MemoryVariable), zap.Error(err))
	}
	logger.Info(ctx, "candidates loaded",
		zap.Int("count", ledger.Len()),
		zap.String("backend", cfg.Backend()))

	tg := telegram.NewClient(telegram.Config{
		Token:              cfg.TelegramToken,
		APIRoot:            cfg.TelegramAPIRoot,
		PollTimeoutSeconds: cfg.PollTimeoutSeconds,
	})

	var tracker workflow.Tracker
	if strings.TrimSpace(cfg.TodoistToken) != "" {
		tracker = todoist.NewClient(cfg.TodoistToken, cfg.TodoistAPIRoot)
	} else {
		logger.Warn(ctx, "TODOIST_API_TOKEN not set, confirm will be refused")
	}

	engine := workflow.NewEngine(workflow.Deps{
		Store:     ledger,
		Flusher:   candidate.NewFlusher(ledger, store, cfg.FlushInterval()),
		Vars:      store,
		Messenger: tg,
		Tracker:   tracker,
		Logger:    logger,
		Metrics:   metrics.New(),
	}, workflow.Options{
		Location:        cfg.Location(),
		RawTextMaxChars: cfg.RawTextMaxChars,
		Monitored:       cfg.IsMonitored,
	})
	engine.LoadBindings(ctx)

	webErr := make(chan error, 1)
	if withWeb {
		srv, err := web.NewServer(engine, logger.Named("web"), Version, cfg.WebBind, cfg.WebPort)
		if err != nil {
			return errors.NewInternal(err)
		}
		go func() {
			webErr <- web.Run(ctx, srv, logger.Named("web"))
		}()
	}

	runErr := bot.New(tg, tg, engine, logger, pollBackoff).Run(ctx)

	if withWeb {
		if err := <-webErr; err != nil {
			logger.Error(ctx, "dashboard stopped", zap.Error(err))
		}
	}
	return runErr
}

// mcpCmd creates the mcp command.
func mcpCmd(baseDir string, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the read-only candidate tools over MCP stdio",
		Action: func(_ *cli.Context) error {
			if err := serveMCP(baseDir, cfg); err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

// serveMCP runs the MCP server. Each request re-reads the persisted ledger.
func serveMCP(baseDir string, cfg *config.Config) error {
	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		return errors.NewInvalidRequest(fmt.Sprintf("unknown disabled_tools: %s (valid: %s)",
			strings.Join(unknown, ", "), strings.Join(mcp.AllToolNames(), ", ")))
	}

	store, closeVars, err := openVars(baseDir, cfg)
	if err != nil {
		return err
	}
	defer closeVars()

	// The railway backend reads this process's environment, so MCP sees
	// the snapshot from the last deploy. Only sqlite tracks live flushes.
	load := func(ctx context.Context) (mcp.CandidateReader, error) {
		raw, _, err := store.Get(ctx, candidate.MemoryVariable)
		if err != nil {
			return nil, err
		}
		// A malformed document reads as an empty ledger.
		ledger, _ := candidate.LoadSnapshot(raw, cfg.CandidateCap)
		return ledger, nil
	}
	return mcp.Run(load, cfg, Version)
}

// ClassifyOutput is the classify command result.
type ClassifyOutput struct {
	Important bool       `json:"important"`
	Reason    string     `json:"reason"`
	Content   string     `json:"content"`
	DueAt     *time.Time `json:"due_at,omitempty"`
}

// classifyCmd creates the classify command.
func classifyCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "classify",
		Usage:     "Classify a message and extract its draft (text from args or stdin)",
		ArgsUsage: "[text]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "voice", Usage: "Treat the message as a voice note"},
			&cli.StringFlag{Name: "now", Usage: "Reference time (RFC3339) for due-date extraction"},
		},
		Action: func(c *cli.Context) error {
			text := strings.Join(c.Args().Slice(), " ")
			if text == "" && stdinHasData() {
				var err error
				text, err = readStdin(maxStdinBytes)
				if err != nil {
					return outputError(err)
				}
			}

			now := time.Now().In(cfg.Location())
			if s := c.String("now"); s != "" {
				t, err := time.Parse(time.RFC3339, s)
				if err != nil {
					return outputError(errors.NewInvalidRequest("now must be RFC3339"))
				}
				now = t.In(cfg.Location())
			}

			verdict := triage.Classify(text, c.Bool("voice"))
			draft := triage.Extract(text, now)
			return outputJSON(ClassifyOutput{
				Important: verdict.Important,
				Reason:    string(verdict.Reason),
				Content:   draft.Content,
				DueAt:     draft.DueAt,
			})
		},
	}
}

// CandidatesOutput is the candidates command result.
type CandidatesOutput struct {
	Candidates []candidate.Candidate `json:"candidates"`
	Count      int                   `json:"count"`
	Totals     map[string]int        `json:"totals"`
}

// candidatesCmd creates the candidates command.
func candidatesCmd(baseDir string, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "candidates",
		Usage: "List persisted candidates, newest first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "status", Aliases: []string{"s"}, Usage: "Filter by status: drafted|created|skipped"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: 20, Usage: "Maximum candidates to return"},
		},
		Action: func(c *cli.Context) error {
			status := candidate.Status(c.String("status"))
			switch status {
			case "", candidate.StatusDrafted, candidate.StatusCreated, candidate.StatusSkipped:
			default:
				return outputError(errors.NewInvalidRequest("status must be one of: drafted, created, skipped"))
			}
			if c.Int("limit") < 0 {
				return outputError(errors.NewInvalidRequest("limit must not be negative"))
			}

			store, closeVars, err := openVars(baseDir, cfg)
			if err != nil {
				return outputError(err)
			}
			defer closeVars()

			ledger, err := loadLedger(c.Context, store, cfg.CandidateCap)
			if err != nil {
				return outputError(err)
			}

			items := ledger.List(candidate.ListFilter{Status: status, Limit: c.Int("limit")})
			totals := make(map[string]int)
			for s, n := range ledger.Counts() {
				totals[string(s)] = n
			}
			return outputJSON(CandidatesOutput{Candidates: items, Count: len(items), Totals: totals})
		},
	}
}

// varsCmd creates the vars command group.
func varsCmd(baseDir string, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "vars",
		Usage: "Read or write persisted variables",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List stored variables (sqlite backend only)",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "values", Usage: "Include values in the output"},
				},
				Action: func(c *cli.Context) error {
					store, closeVars, err := openVars(baseDir, cfg)
					if err != nil {
						return outputError(err)
					}
					defer closeVars()

					lister, ok := store.(variableLister)
					if !ok {
						return outputError(errors.NewInvalidRequest(
							fmt.Sprintf("vars list is not supported by the %s backend", cfg.Backend())))
					}
					list, err := lister.List(c.Context)
					if err != nil {
						return outputError(err)
					}

					items := make([]VariableOutput, 0, len(list))
					for _, v := range list {
						item := VariableOutput{
							Name:      v.Name,
							Chars:     len([]rune(v.Value)),
							UpdatedAt: time.Unix(v.UpdatedAt, 0).UTC(),
						}
						if c.Bool("values") {
							item.Value = v.Value
						}
						items = append(items, item)
					}
					return outputJSON(map[string]any{"variables": items, "count": len(items)})
				},
			},
			{
				Name:      "get",
				Usage:     "Print a variable",
				ArgsUsage: "<name>",
				Action: func(c *cli.Context) error {
					name := c.Args().First()
					if name == "" {
						return outputError(errors.NewInvalidRequest("variable name is required"))
					}

					store, closeVars, err := openVars(baseDir, cfg)
					if err != nil {
						return outputError(err)
					}
					defer closeVars()

					value, ok, err := store.Get(c.Context, name)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(map[string]any{"name": name, "value": value, "set": ok})
				},
			},
			{
				Name:      "set",
				Usage:     "Write a variable (value from args or stdin)",
				ArgsUsage: "<name> [value]",
				Action: func(c *cli.Context) error {
					name := c.Args().Get(0)
					if name == "" {
						return outputError(errors.NewInvalidRequest("variable name is required"))
					}
					value := c.Args().Get(1)
					if c.Args().Len() < 2 {
						if !stdinHasData() {
							return outputError(errors.NewInvalidRequest("value must be an argument or piped via stdin"))
						}
						var err error
						value, err = readStdin(maxStdinBytes)
						if err != nil {
							return outputError(err)
						}
					}

					store, closeVars, err := openVars(baseDir, cfg)
					if err != nil {
						return outputError(err)
					}
					defer closeVars()

					if err := store.Set(c.Context, name, value); err != nil {
						return outputError(err)
					}
					return outputJSON(map[string]any{"name": name, "set": true})
				},
			},
		},
	}
}

// VariableOutput is one vars list entry.
type VariableOutput struct {
	Name      string    `json:"name"`
	Value     string    `json:"value,omitempty"`
	Chars     int       `json:"chars"`
	UpdatedAt time.Time `json:"updated_at"`
}

// variableLister is implemented by backends that can enumerate variables.
type variableLister interface {
	List(ctx context.Context) ([]db.Variable, error)
}

// openVars opens the configured variable backend.
func openVars(baseDir string, cfg *config.Config) (vars.Store, func(), error) {
	if cfg.Backend() == config.BackendRailway {
		store := vars.NewRailway(vars.RailwayConfig{
			Token:          cfg.RailwayToken,
			ProjectID:      cfg.RailwayProjectID,
			EnvironmentID:  cfg.RailwayEnvironmentID,
			ServiceID:      cfg.RailwayServiceID,
			URL:            cfg.RailwayAPIURL,
			TriggerDeploys: cfg.RailwayTriggerDeploys,
		})
		return store, func() {}, nil
	}

	database, err := db.Init(baseDir)
	if err != nil {
		return nil, nil, errors.NewInternal(fmt.Errorf("failed to initialize database: %w", err))
	}
	return vars.NewSQLite(database), func() { _ = database.Close() }, nil
}

// loadLedger rebuilds the candidate store from MEMORY_JSON. A malformed
// document still yields an empty store alongside the decode error.
func loadLedger(ctx context.Context, store vars.Store, capacity int) (*candidate.Store, error) {
	raw, _, err := store.Get(ctx, candidate.MemoryVariable)
	if err != nil {
		return candidate.NewStore(capacity), err
	}
	return candidate.LoadSnapshot(raw, capacity)
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var sErr *errors.SieveError
	if stderrors.As(err, &sErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", sErr.Code, sErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads up to maxBytes from stdin.
func readStdin(maxBytes int) (string, error) {
	data, err := io.ReadAll(io.LimitReader(os.Stdin, int64(maxBytes)+1))
	if err != nil {
		return "", errors.NewInternal(err)
	}
	if len(data) > maxBytes {
		return "", errors.NewInvalidRequest(fmt.Sprintf("stdin exceeds %d bytes", maxBytes))
	}
	return strings.TrimSpace(string(data)), nil
}
