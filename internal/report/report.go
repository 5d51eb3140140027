// Package report renders views, badges and currency tables for the terminal.
package report

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/shopspring/decimal"
	"golang.org/x/term"

	"pennypal/internal/core"
	"pennypal/internal/engine"
)

const (
	barWidth      = 20
	amountPlaces  = 2
	columnSpacing = 2
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#5F5FD7", Dark: "#89B4FA"})
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#6C7086", Dark: "#7F849C"})
	goodStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#00AF5F", Dark: "#A6E3A1"})
	badStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#D7005F", Dark: "#F38BA8"})
	badgeStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#AF8700", Dark: "#F9E2AF"})
)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Printer writes reports to w. Styles are applied only when color is set, so
// piped output stays plain text.
type Printer struct {
	w     io.Writer
	color bool
}

func NewPrinter(w io.Writer, color bool) *Printer {
	return &Printer{w: w, color: color}
}

func (p *Printer) style(s lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return s.Render(text)
}

func (p *Printer) println(line string) {
	_, _ = fmt.Fprintln(p.w, line)
}

// View prints the period totals, category table, goal progress and badges.
func (p *Printer) View(v engine.View) {
	p.println(p.style(titleStyle, fmt.Sprintf("%s · %s %s (%s)", v.UserID, v.Period, v.PeriodKey, v.Currency)))
	p.println(p.style(mutedStyle, fmt.Sprintf("%s to %s", v.Start, v.End)))
	p.println("")

	rows := make([][2]string, 0, len(v.Categories)+4)
	for _, ct := range v.Categories {
		rows = append(rows, [2]string{ct.Category, Amount(ct.Total)})
	}
	if len(rows) == 0 {
		p.println(p.style(mutedStyle, "No expenses in this period."))
	} else {
		p.table(rows)
	}
	p.println("")

	p.table([][2]string{
		{"Expenses", Amount(v.TotalExpense)},
		{"Income", Amount(v.TotalIncome)},
		{"Balance", p.signed(v.Balance)},
		{"Limit", Amount(v.SpendingLimit)},
		{"Left", p.signed(v.BalanceVsGoal)},
	})
	p.println("")

	bar := ProgressBar(v.GoalProgress, barWidth)
	if v.GoalProgress >= 1 {
		bar = p.style(badStyle, bar)
	} else {
		bar = p.style(goodStyle, bar)
	}
	p.println(fmt.Sprintf("Goal %s %s", bar, Percent(v.GoalProgress)))

	if v.Skipped > 0 {
		p.println(p.style(mutedStyle, fmt.Sprintf("%d transaction(s) skipped: unreadable date", v.Skipped)))
	}
	if len(v.Badges) > 0 {
		p.println("")
		p.Badges(v.Badges)
	}
}

// Badges prints one line per badge.
func (p *Printer) Badges(bs []core.Badge) {
	if len(bs) == 0 {
		p.println(p.style(mutedStyle, "No badges yet."))
		return
	}
	rows := make([][2]string, 0, len(bs))
	for _, b := range bs {
		rows = append(rows, [2]string{p.style(badgeStyle, b.Title), fmt.Sprintf("%s  earned %s", b.PeriodKey, b.EarnedDateKey)})
	}
	p.table(rows)
}

// Currencies prints the supported codes with the base marked.
func (p *Printer) Currencies(base string, codes []string) {
	for _, c := range codes {
		if c == base {
			p.println(p.style(titleStyle, c) + p.style(mutedStyle, " (base)"))
			continue
		}
		p.println(c)
	}
}

// Conversion prints "amount FROM = result TO".
func (p *Printer) Conversion(amount decimal.Decimal, from string, result decimal.Decimal, to string) {
	p.println(fmt.Sprintf("%s %s = %s %s", amount.String(), from, p.style(titleStyle, result.String()), to))
}

func (p *Printer) signed(d decimal.Decimal) string {
	if d.IsNegative() {
		return p.style(badStyle, Amount(d))
	}
	return Amount(d)
}

// table left-aligns the first column and right-aligns the second, measuring
// display width so wide runes line up.
func (p *Printer) table(rows [][2]string) {
	left, right := 0, 0
	for _, r := range rows {
		left = max(left, lipgloss.Width(r[0]))
		right = max(right, lipgloss.Width(r[1]))
	}
	for _, r := range rows {
		p.println(pad(r[0], left, false) + strings.Repeat(" ", columnSpacing) + pad(r[1], right, true))
	}
}

// pad fills s to width display cells. Styled text is measured without its
// escape sequences.
func pad(s string, width int, alignRight bool) string {
	if lipgloss.Width(s) == runewidth.StringWidth(s) {
		if alignRight {
			return runewidth.FillLeft(s, width)
		}
		return runewidth.FillRight(s, width)
	}
	gap := strings.Repeat(" ", max(0, width-lipgloss.Width(s)))
	if alignRight {
		return gap + s
	}
	return s + gap
}

// Amount formats d with two decimals.
func Amount(d decimal.Decimal) string {
	return d.StringFixed(amountPlaces)
}

// Percent formats a 0..1 ratio as a whole percentage.
func Percent(ratio float64) string {
	return fmt.Sprintf("%d%%", int(math.Round(ratio*100)))
}

// ProgressBar draws ratio as a bar of width cells.
func ProgressBar(ratio float64, width int) string {
	ratio = math.Max(0, math.Min(1, ratio))
	filled := int(math.Round(ratio * float64(width)))
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", width-filled) + "]"
}
