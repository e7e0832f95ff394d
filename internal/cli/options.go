package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/zgpcy/omnicost/internal/format"
	"github.com/zgpcy/omnicost/internal/provider"
)

// Options holds the flags shared by every vendor command
type Options struct {
	Start   string
	End     string
	GroupBy string
	Format  string
	Sheet   string
	Quiet   bool
}

// addCommonFlags registers the shared flags. Azure uses -s for the
// subscription, so its date flags have no shorthand.
func addCommonFlags(cmd *cobra.Command, opts *Options, dateShorthands bool, defaultGroupBy provider.Dimension) {
	flags := cmd.Flags()

	if dateShorthands {
		flags.StringVarP(&opts.Start, "start", "s", "", "Start date (YYYY-MM-DD)")
		flags.StringVarP(&opts.End, "end", "e", "", "End date (YYYY-MM-DD)")
	} else {
		flags.StringVar(&opts.Start, "start", "", "Start date (YYYY-MM-DD)")
		flags.StringVar(&opts.End, "end", "", "End date (YYYY-MM-DD)")
	}
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")

	flags.StringVarP(&opts.GroupBy, "group-by", "g", string(defaultGroupBy),
		"Group by dimension ("+joinDimensions()+")")
	flags.StringVarP(&opts.Format, "format", "f", string(format.TSV), "Output format ("+joinFormats()+")")
	flags.StringVar(&opts.Sheet, "sheet", "", "Google Sheets URL for direct write")
	flags.BoolVarP(&opts.Quiet, "quiet", "q", false, "Suppress progress output")
}

// FetchParams validates the options and returns the fetch parameters and
// output format
func (o Options) FetchParams() (provider.FetchParams, format.Format, error) {
	if err := ValidateDates(o.Start, o.End); err != nil {
		return provider.FetchParams{}, "", err
	}

	f, err := ValidateFormat(o.Format)
	if err != nil {
		return provider.FetchParams{}, "", err
	}

	params := provider.FetchParams{StartDate: o.Start, EndDate: o.End}
	if o.GroupBy != "" {
		if params.GroupBy, err = ValidateGroupBy(o.GroupBy); err != nil {
			return provider.FetchParams{}, "", err
		}
	}

	return params, f, nil
}

// ValidateDates checks that both dates are YYYY-MM-DD and start is not after end
func ValidateDates(start, end string) error {
	startDate, err := time.Parse(provider.DateLayout, start)
	if err != nil {
		return fmt.Errorf("Invalid start date: %s", start)
	}

	endDate, err := time.Parse(provider.DateLayout, end)
	if err != nil {
		return fmt.Errorf("Invalid end date: %s", end)
	}

	if startDate.After(endDate) {
		return fmt.Errorf("Start date must be before end date")
	}
	return nil
}

// ValidateGroupBy normalizes a grouping dimension to upper case
func ValidateGroupBy(groupBy string) (provider.Dimension, error) {
	d := provider.Dimension(strings.ToUpper(groupBy))
	if !lo.Contains(provider.Dimensions, d) {
		return "", fmt.Errorf("Invalid group-by dimension: %s. Valid options: %s", groupBy, joinDimensions())
	}
	return d, nil
}

// ValidateFormat normalizes an output format to lower case
func ValidateFormat(f string) (format.Format, error) {
	lower := format.Format(strings.ToLower(f))
	if !lo.Contains(format.Formats, lower) {
		return "", fmt.Errorf("Invalid format: %s. Valid options: %s", f, joinFormats())
	}
	return lower, nil
}

func joinDimensions() string {
	return strings.Join(lo.Map(provider.Dimensions, func(d provider.Dimension, _ int) string {
		return string(d)
	}), ", ")
}

func joinFormats() string {
	return strings.Join(lo.Map(format.Formats, func(f format.Format, _ int) string {
		return string(f)
	}), ", ")
}
