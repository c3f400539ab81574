package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/lepinkainen/humanlog"
	"github.com/spf13/viper"

	"github.com/lepinkainen/gary/internal/config"
)

// CLI represents the complete command structure for the gary application
type CLI struct {
	// Global flags
	Config  string `help:"Path to config file (default ./config.yaml when present)" type:"path"`
	DB      string `help:"Path to the SQLite database (overrides db.file)" type:"path"`
	Verbose bool   `short:"v" help:"Enable debug logging"`

	Pass   PassCmd   `cmd:"" help:"Look up every pending book and cache the results"`
	Sync   SyncCmd   `cmd:"" help:"Import ISBNs from stdin, run a pass and report whether all are cached"`
	Import ImportCmd `cmd:"" help:"Import books from a CSV file or stdin"`
	JSON   JSONCmd   `cmd:"" name:"json" help:"Print the cached payload of a book"`
	Cover  CoverCmd  `cmd:"" help:"Write the cover image of a book"`
	Remap  RemapCmd  `cmd:"" help:"Manage alternate ISBNs tried before a book's own"`
	Custom CustomCmd `cmd:"" help:"Manage hand-written payloads that override lookups"`
	Status StatusCmd `cmd:"" help:"Show database counts"`
}

// streams are the standard streams a command reads and writes.
type streams struct {
	in  io.Reader
	out io.Writer
	err io.Writer
}

// Execute runs the Kong-based CLI
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx, os.Args[1:], streams{in: os.Stdin, out: os.Stdout, err: os.Stderr})
	if err != nil {
		slog.Error("Command failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, s streams) error {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("gary"),
		kong.Description("A local cache of ISBNdb book records."),
		kong.UsageOnError(),
		kong.Writers(s.out, s.err),
	)
	if err != nil {
		return err
	}

	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	initLogging(s.err, cli.Verbose)

	settings, err := initConfig(&cli)
	if err != nil {
		return err
	}

	a := &app{
		ctx:      ctx,
		settings: settings,
		stdin:    s.in,
		stdout:   s.out,
		now:      time.Now,
		styles:   newStyles(isTerminal(s.out)),
	}
	defer a.close()

	return kctx.Run(a)
}

func initConfig(cli *CLI) (config.Settings, error) {
	if err := config.LoadDotEnv(".env", ".env.local"); err != nil {
		return config.Settings{}, fmt.Errorf("load environment file: %w", err)
	}

	v := viper.GetViper()
	if err := config.Setup(v, cli.Config); err != nil {
		return config.Settings{}, err
	}
	if cli.DB != "" {
		v.Set(config.KeyDBFile, cli.DB)
	}

	return config.Load(v)
}

func initLogging(w io.Writer, verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	// stdout carries command output, so logs go to stderr
	handler := humanlog.NewHandler(w, &humanlog.Options{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}
