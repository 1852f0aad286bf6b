package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/dinosync/internal"
	"github.com/starford/dinosync/internal/settings"
	"github.com/starford/dinosync/internal/state"
	pkgconfig "github.com/starford/dinosync/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	found, err := pkgconfig.LoadOptional(configPath, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if !found {
		slog.Debug("config file not found, using defaults", slog.String("path", configPath))
	}
	return cfg, nil
}

func options(cmd *cli.Command) ([]internal.Option, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return []internal.Option{
		internal.WithConfig(cfg),
		internal.WithVersion(version),
	}, nil
}

// withApp opens the vault for a one-shot command. Logs go to stderr so that
// command output stays machine-readable.
func withApp(fn func(ctx context.Context, cmd *cli.Command, app *internal.App) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		opts, err := options(cmd)
		if err != nil {
			return err
		}
		opts = append(opts, internal.WithLogOutput(os.Stderr))
		app, err := internal.Open(opts...)
		if err != nil {
			return err
		}
		defer app.Close()
		return fn(ctx, cmd, app)
	}
}

func serve(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, opts...)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func requirePath(cmd *cli.Command) (string, error) {
	p := strings.TrimSpace(cmd.Args().First())
	if p == "" {
		return "", fmt.Errorf("a vault-relative note path is required")
	}
	return p, nil
}

func syncOnce(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	summary, err := app.Engine.RunFullSync(ctx)
	if err != nil {
		return err
	}
	return printJSON(summary)
}

func push(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	p, err := requirePath(cmd)
	if err != nil {
		return err
	}
	id, err := app.Engine.PushNote(ctx, p)
	if err != nil {
		return err
	}
	fmt.Printf("pushed %s (%s)\n", p, id)
	return nil
}

func create(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	p, err := requirePath(cmd)
	if err != nil {
		return err
	}
	id, err := app.Engine.CreateNote(ctx, p)
	if err != nil {
		return err
	}
	fmt.Printf("created %s (%s)\n", p, id)
	return nil
}

func resetWatermark(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	preset := strings.TrimSpace(cmd.Args().First())
	since := strings.TrimSpace(cmd.String("since"))

	var (
		wm  string
		err error
	)
	switch {
	case preset != "" && since != "":
		return fmt.Errorf("give either a preset or --since, not both")
	case since != "":
		t, perr := state.ParseSince(since, time.Now())
		if perr != nil {
			return perr
		}
		wm, err = app.Engine.SetWatermark(ctx, t)
	case preset != "":
		wm, err = app.Engine.ResetWatermark(ctx, preset)
	default:
		return fmt.Errorf("a preset (%s) or --since is required", strings.Join(state.Presets, ", "))
	}
	if err != nil {
		return err
	}
	fmt.Println(wm)
	return nil
}

func today(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	p, created, err := app.Engine.OpenToday(ctx)
	if err != nil {
		return err
	}
	if created {
		fmt.Printf("created %s\n", p)
		return nil
	}
	fmt.Println(p)
	return nil
}

func status(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	wm, err := app.Engine.Watermark(ctx)
	if err != nil {
		return err
	}
	data, err := app.Store.Load(ctx)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{
		"watermark":     wm,
		"tracked_notes": len(data.State.NotePathByID),
		"repairs":       data.Repairs,
	})
}

func runs(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	list, err := app.DB.Runs(ctx, int(cmd.Int("limit")))
	if err != nil {
		return err
	}
	if list == nil {
		list = []state.Run{}
	}
	return printJSON(list)
}

func settingsGet(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	data, err := app.Store.Load(ctx)
	if err != nil {
		return err
	}
	if key := cmd.Args().First(); key != "" {
		v, err := settings.Get(data.Settings, key)
		if err != nil {
			return err
		}
		fmt.Println(v)
		return nil
	}
	for _, key := range settings.Keys() {
		v, _ := settings.Get(data.Settings, key)
		if key == "token" && v != "" {
			v = "********"
		}
		if strings.Contains(v, "\n") {
			v = fmt.Sprintf("%q", v)
		}
		fmt.Printf("%s=%s\n", key, v)
	}
	return nil
}

func settingsSet(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	if cmd.Args().Len() != 2 {
		return fmt.Errorf("usage: settings set <key> <value>")
	}
	key, value := cmd.Args().Get(0), cmd.Args().Get(1)

	data, err := app.Store.Load(ctx)
	if err != nil {
		return err
	}
	s := data.Settings
	if err := settings.Set(&s, key, value); err != nil {
		return err
	}
	if err := s.Validate(); err != nil {
		return fmt.Errorf("settings: %w", err)
	}
	if err := app.Store.SaveSettings(ctx, s); err != nil {
		return err
	}
	app.Logger.Info("settings updated", slog.String("key", key))
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:    "dinosync",
		Usage:   "Pull Dinox notes into a Markdown vault and keep daily notes linked",
		Version: version,
		Action:  serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run auto-sync with the local control API",
				Action: serve,
			},
			{
				Name:   "sync",
				Usage:  "Run one sync pass and print the summary",
				Action: withApp(syncOnce),
			},
			{
				Name:      "push",
				Usage:     "Send a note with a noteId to Dinox",
				ArgsUsage: "<path>",
				Action:    withApp(push),
			},
			{
				Name:      "create",
				Usage:     "Create a Dinox note from a local note without a noteId",
				ArgsUsage: "<path>",
				Action:    withApp(create),
			},
			{
				Name:      "reset-watermark",
				Usage:     "Refetch older notes on the next sync",
				ArgsUsage: "[" + strings.Join(state.Presets, "|") + "]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "since",
						Usage: `Date, timestamp or phrase such as "last monday"`,
					},
				},
				Action: withApp(resetWatermark),
			},
			{
				Name:   "today",
				Usage:  "Print today's daily note path, creating the note when missing",
				Action: withApp(today),
			},
			{
				Name:   "status",
				Usage:  "Show the watermark and tracked note count",
				Action: withApp(status),
			},
			{
				Name:  "runs",
				Usage: "List recent sync passes",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Number of passes to show",
						Value: 20,
					},
				},
				Action: withApp(runs),
			},
			{
				Name:  "settings",
				Usage: "Read or change sync settings",
				Commands: []*cli.Command{
					{
						Name:      "get",
						Usage:     "Print one setting, or all of them",
						ArgsUsage: "[key]",
						Action:    withApp(settingsGet),
					},
					{
						Name:      "set",
						Usage:     "Change a setting",
						ArgsUsage: "<key> <value>",
						Action:    withApp(settingsSet),
					},
				},
			},
			{
				Name:   "mcp",
				Usage:  "Serve the sync tools over MCP stdio",
				Action: serveMCP,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
