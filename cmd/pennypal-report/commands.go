package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"pennypal/internal/backend"
	"pennypal/internal/cli"
	"pennypal/internal/config"
	"pennypal/internal/core"
	"pennypal/internal/engine"
	"pennypal/internal/log"
	"pennypal/internal/report"
)

// App carries what the commands share. The backend is opened on first use so
// that currencies and convert work without one.
type App struct {
	cfg     *config.Config
	logger  *log.Logger
	printer *report.Printer

	res    *backend.Result
	engine *engine.Engine
}

func (a *App) Engine(ctx context.Context) (*engine.Engine, error) {
	if a.engine != nil {
		return a.engine, nil
	}
	res, err := cli.OpenBackend(ctx, a.cfg, a.logger)
	if err != nil {
		return nil, err
	}
	e, err := cli.BuildEngine(a.cfg, res, a.logger)
	if err != nil {
		_ = res.Close()
		return nil, err
	}
	a.res, a.engine = res, e
	return e, nil
}

func (a *App) Close() {
	if a.res != nil {
		_ = a.res.Close()
	}
}

type Commands struct {
	View       ViewCmd       `cmd:"" help:"Show a user's spending view for a period."`
	Badges     BadgesCmd     `cmd:"" help:"List a user's earned badges."`
	Currencies CurrenciesCmd `cmd:"" help:"List the supported display currencies."`
	Convert    ConvertCmd    `cmd:"" help:"Convert an amount between currencies."`
}

type ViewCmd struct {
	User     string `arg:"" help:"User id."`
	Period   string `help:"Daily, Weekly, Monthly or Yearly." default:"Monthly" short:"p"`
	Currency string `help:"Display currency, defaults to the base currency." short:"c"`
}

func (cmd *ViewCmd) Run(ctx context.Context, app *App) error {
	e, err := app.Engine(ctx)
	if err != nil {
		return err
	}
	currency := strings.ToUpper(strings.TrimSpace(cmd.Currency))
	if currency == "" {
		currency = e.Rates().Base()
	}
	v, err := e.View(ctx, core.Session{UserID: cmd.User, DisplayCurrency: currency}, core.Period(cmd.Period))
	if err != nil {
		return err
	}
	app.printer.View(v)
	return nil
}

type BadgesCmd struct {
	User string `arg:"" help:"User id."`
}

func (cmd *BadgesCmd) Run(ctx context.Context, app *App) error {
	if _, err := app.Engine(ctx); err != nil {
		return err
	}
	bs, err := app.res.Badges.ListBadges(ctx, cmd.User)
	if err != nil {
		return err
	}
	app.printer.Badges(bs)
	return nil
}

type CurrenciesCmd struct{}

func (cmd *CurrenciesCmd) Run(app *App) error {
	rates, err := app.cfg.Rates()
	if err != nil {
		return err
	}
	app.printer.Currencies(rates.Base(), rates.Codes())
	return nil
}

type ConvertCmd struct {
	Amount string `arg:"" help:"Amount to convert."`
	From   string `help:"Source currency." required:""`
	To     string `help:"Target currency." required:""`
}

func (cmd *ConvertCmd) Run(app *App) error {
	amount, err := decimal.NewFromString(strings.TrimSpace(cmd.Amount))
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", cmd.Amount, err)
	}
	rates, err := app.cfg.Rates()
	if err != nil {
		return err
	}
	from, to := strings.ToUpper(cmd.From), strings.ToUpper(cmd.To)
	out, err := rates.Convert(amount, from, to)
	if err != nil {
		return err
	}
	app.printer.Conversion(amount, from, out, to)
	return nil
}
