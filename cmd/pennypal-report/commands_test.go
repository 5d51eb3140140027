package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/alecthomas/kong"

	"pennypal/internal/config"
	"pennypal/internal/log"
	"pennypal/internal/report"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var cmds Commands
	parser, err := kong.New(&cmds, kong.Name("pennypal-report"))
	assert.NoError(t, err)
	kctx, err := parser.Parse(args)
	assert.NoError(t, err)

	var buf bytes.Buffer
	app := &App{
		cfg: &config.Config{
			DataBackend:          config.BackendMemory,
			BaseCurrency:         "ZAR",
			DefaultSpendingLimit: "20000",
			Timezone:             "UTC",
		},
		logger:  log.Discard(),
		printer: report.NewPrinter(&buf, false),
	}
	t.Cleanup(app.Close)

	kctx.BindTo(context.Background(), (*context.Context)(nil))
	err = kctx.Run(app)
	return buf.String(), err
}

func TestConvertCmd(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    string
		wantErr bool
	}{
		{"zar to usd", []string{"convert", "400", "--from", "ZAR", "--to", "USD"}, "400 ZAR = 21.6 USD\n", false},
		{"lower case codes", []string{"convert", "10", "--from", "eur", "--to", "zar"}, "10 EUR = 200 ZAR\n", false},
		{"unknown currency", []string{"convert", "10", "--from", "ZAR", "--to", "XYZ"}, "", true},
		{"bad amount", []string{"convert", "ten", "--from", "ZAR", "--to", "USD"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCommand(t, tt.args...)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestCurrenciesCmd(t *testing.T) {
	out, err := runCommand(t, "currencies")
	assert.NoError(t, err)
	assert.Equal(t, "EUR\nGBP\nINR\nUSD\nZAR (base)\n", out)
}

func TestViewCmd(t *testing.T) {
	out, err := runCommand(t, "view", "u1", "--period", "Weekly", "-c", "usd")
	assert.NoError(t, err)
	assert.Contains(t, out, "u1 · Weekly")
	assert.Contains(t, out, "(USD)")
	assert.Contains(t, out, "No expenses in this period.")

	_, err = runCommand(t, "view", "u1", "--period", "Hourly")
	assert.Error(t, err)
}

func TestBadgesCmd(t *testing.T) {
	out, err := runCommand(t, "badges", "u1")
	assert.NoError(t, err)
	assert.Equal(t, "No badges yet.\n", out)
}
