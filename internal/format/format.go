// Package format renders normalized cost records as flat text tables.
package format

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/zgpcy/omnicost/internal/provider"
)

// Format selects an output renderer
type Format string

// Supported output formats
const (
	TSV      Format = "tsv"
	CSV      Format = "csv"
	Markdown Format = "markdown"
)

// Formats lists the supported formats in display order
var Formats = []Format{TSV, CSV, Markdown}

var headers = []string{"Date", "Service", "Amount", "Currency", "Region"}

// Formatter renders records as text. Empty input renders as "".
type Formatter interface {
	Format(records []provider.CostRecord) string
}

// Get returns the formatter for f
func Get(f Format) (Formatter, error) {
	switch f {
	case TSV:
		return delimited{sep: "\t", quote: plain}, nil
	case CSV:
		return delimited{sep: ",", quote: quoted}, nil
	case Markdown:
		return markdown{}, nil
	default:
		return nil, fmt.Errorf("Unsupported format: %s", f)
	}
}

// Render formats records with the formatter for f
func Render(records []provider.CostRecord, f Format) (string, error) {
	formatter, err := Get(f)
	if err != nil {
		return "", err
	}
	return formatter.Format(records), nil
}

// Amount renders a cost with two fixed decimal places. Non-finite values
// render as 0.00.
func Amount(v float64) string {
	return decimal.NewFromFloat(provider.FiniteOrZero(v)).StringFixed(2)
}

func plain(s string) string {
	return s
}

// quoted wraps s in double quotes, doubling embedded quotes
func quoted(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

type delimited struct {
	sep   string
	quote func(string) string
}

func (d delimited) Format(records []provider.CostRecord) string {
	if len(records) == 0 {
		return ""
	}

	lines := make([]string, 0, len(records)+1)
	lines = append(lines, strings.Join(headers, d.sep))
	for _, r := range records {
		lines = append(lines, strings.Join([]string{
			r.Date,
			d.quote(r.Service),
			Amount(r.Amount),
			r.Currency,
			r.Region,
		}, d.sep))
	}
	return strings.Join(lines, "\n")
}

type markdown struct{}

func (markdown) Format(records []provider.CostRecord) string {
	if len(records) == 0 {
		return ""
	}

	row := func(cells []string) string {
		return "| " + strings.Join(cells, " | ") + " |"
	}
	separator := "|" + strings.Join(lo.Map(headers, func(h string, _ int) string {
		return strings.Repeat("-", len(h)+2)
	}), "|") + "|"

	lines := make([]string, 0, len(records)+2)
	lines = append(lines, row(headers), separator)
	for _, r := range records {
		lines = append(lines, row([]string{r.Date, r.Service, Amount(r.Amount), r.Currency, r.Region}))
	}
	return strings.Join(lines, "\n")
}
