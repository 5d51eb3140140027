package main

import (
	"context"
	"os"

	"github.com/alecthomas/kong"

	"pennypal/internal/cli"
	"pennypal/internal/log"
	"pennypal/internal/report"
)

var (
	// Version is set via ldflags when building.
	Version = "dev"

	commands struct {
		Version kong.VersionFlag `help:"Show version information."`
		NoColor bool             `help:"Disable styled output." env:"NO_COLOR"`
		Commands
	}
)

func main() {
	cli.LoadEnvFile()

	ctx := kong.Parse(&commands,
		kong.Name("pennypal-report"),
		kong.Description("Spending views, badges and currency conversion from the configured ledger."),
		kong.Vars{"version": Version},
		kong.UsageOnError(),
	)

	cfg := cli.LoadAndValidateConfig(log.New(log.DefaultConfig()))
	lc := cfg.LoggerConfig()
	lc.Output = os.Stderr
	lc.Component = log.ComponentCLI
	logger := log.New(lc)

	app := &App{
		cfg:     cfg,
		logger:  logger,
		printer: report.NewPrinter(os.Stdout, !commands.NoColor && report.IsTerminal(os.Stdout)),
	}
	defer app.Close()

	ctx.BindTo(context.Background(), (*context.Context)(nil))
	ctx.FatalIfErrorf(ctx.Run(app))
}
