package datadog

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/zgpcy/omnicost/internal/clock"
	"github.com/zgpcy/omnicost/internal/config"
	"github.com/zgpcy/omnicost/internal/logger"
	"github.com/zgpcy/omnicost/internal/provider"
	"github.com/zgpcy/omnicost/internal/retry"
)

// ServiceUsage labels every attribution record
const ServiceUsage = "Datadog Usage"

// usageField names one summary usage figure
type usageField struct {
	name  string
	value func(SummaryRow) float64
}

// summaryFields are emitted in this order for every summary row
var summaryFields = []usageField{
	{"APM Hosts", func(r SummaryRow) float64 { return r.APMHostTop99p }},
	{"APM Traces", func(r SummaryRow) float64 { return r.IngestedEventsBytesSum }},
	{"Logs", func(r SummaryRow) float64 { return r.IndexedEventsCountSum }},
	{"Infrastructure Hosts", func(r SummaryRow) float64 { return r.InfraHostTop99p }},
	{"Synthetics", func(r SummaryRow) float64 { return r.SyntheticsCheckCallsCountSum }},
	{"RUM Sessions", func(r SummaryRow) float64 { return r.RUMTotalSessionCountSum }},
}

// Client reads Datadog usage and implements provider.CostProvider.
// Amounts are usage quantities, reported with the USD currency code.
type Client struct {
	api    UsageAPI
	exec   *retry.Executor
	logger *logger.Logger
	clock  clock.Clock
}

// Verify that Client implements provider.CostProvider
var _ provider.CostProvider = (*Client)(nil)

// NewClient creates a client for the configured site and keys
func NewClient(cfg config.DatadogConfig, exec *retry.Executor, log *logger.Logger) *Client {
	return NewFromAPI(newMeteringAPI(cfg), exec, log, clock.RealClock{})
}

// NewFromAPI creates a Client from an explicit usage API and clock
func NewFromAPI(api UsageAPI, exec *retry.Executor, log *logger.Logger, clk clock.Clock) *Client {
	return &Client{
		api:    api,
		exec:   exec,
		logger: log.WithFields("provider", provider.ProviderDatadog),
		clock:  clk,
	}
}

// Name returns the provider type
func (c *Client) Name() provider.ProviderType {
	return provider.ProviderDatadog
}

// DisplayName returns the vendor API name
func (c *Client) DisplayName() string {
	return "Datadog Usage"
}

// ValidateCredentials requests last month's usage summary once, without retries
func (c *Client) ValidateCredentials(ctx context.Context) (bool, error) {
	end := c.clock.Now()
	if _, err := c.api.UsageSummary(ctx, end.AddDate(0, -1, 0), end); err != nil {
		if IsCredentialError(err) {
			c.logger.Error("Invalid Datadog credentials", "error", err)
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// FetchCosts reads the usage summary, or the monthly usage attribution when
// a grouping dimension is given
func (c *Client) FetchCosts(ctx context.Context, params provider.FetchParams) ([]provider.CostRecord, error) {
	records, err := c.fetch(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("Failed to fetch Datadog usage data: %w", err)
	}
	return records, nil
}

func (c *Client) fetch(ctx context.Context, params provider.FetchParams) ([]provider.CostRecord, error) {
	start, err := time.Parse(provider.DateLayout, params.StartDate)
	if err != nil {
		return nil, fmt.Errorf("invalid start date %q: %w", params.StartDate, err)
	}
	end, err := time.Parse(provider.DateLayout, params.EndDate)
	if err != nil {
		return nil, fmt.Errorf("invalid end date %q: %w", params.EndDate, err)
	}

	if params.Grouped() {
		fields := strings.ToLower(string(params.GroupBy))
		rows, err := retry.Do(ctx, c.exec, "GetMonthlyUsageAttribution", Classify,
			func(ctx context.Context) ([]AttributionRow, error) {
				return c.api.MonthlyAttribution(ctx, monthStart(start), monthStart(end), fields)
			})
		if err != nil {
			return nil, err
		}
		return c.attributionRecords(rows), nil
	}

	rows, err := retry.Do(ctx, c.exec, "GetUsageSummary", Classify,
		func(ctx context.Context) ([]SummaryRow, error) {
			return c.api.UsageSummary(ctx, start, end)
		})
	if err != nil {
		return nil, err
	}
	return c.summaryRecords(rows), nil
}

// summaryRecords emits one record per non-zero usage field of each row
func (c *Client) summaryRecords(rows []SummaryRow) []provider.CostRecord {
	var records []provider.CostRecord
	for _, row := range rows {
		date := c.dateOrToday(row.Date)
		for _, field := range summaryFields {
			value := field.value(row)
			if value <= 0 {
				continue
			}
			records = append(records, provider.CostRecord{
				Date:     date,
				Service:  field.name,
				Amount:   value,
				Currency: provider.DefaultCurrency,
			})
		}
	}
	return records
}

// attributionRecords emits one record per positive value of each row
func (c *Client) attributionRecords(rows []AttributionRow) []provider.CostRecord {
	var records []provider.CostRecord
	for _, row := range rows {
		date := c.dateOrToday(row.Month)
		tags := parseTags(row.Tags)

		keys := lo.Keys(row.Values)
		sort.Strings(keys)

		for _, key := range keys {
			amount := usageAmount(row.Values[key])
			if amount <= 0 {
				continue
			}
			records = append(records, provider.CostRecord{
				Date:     date,
				Service:  ServiceUsage,
				Amount:   amount,
				Currency: provider.DefaultCurrency,
				Tags:     tags,
			})
		}
	}
	return records
}

// dateOrToday returns the calendar day of an RFC 3339 or YYYY-MM-DD value,
// or today when the value is empty
func (c *Client) dateOrToday(value string) string {
	if value == "" {
		return clock.Today(c.clock)
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC().Format(provider.DateLayout)
	}
	if len(value) >= len(provider.DateLayout) {
		return value[:len(provider.DateLayout)]
	}
	return value
}

// usageAmount reads a usage quantity: a number, a numeric string, or an
// object holding a "usage" number or else its first numeric field (keys sorted)
func usageAmount(value any) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case string:
		return provider.ParseAmount(v)
	case map[string]any:
		if usage, ok := v["usage"].(float64); ok {
			return usage
		}
		keys := lo.Keys(v)
		sort.Strings(keys)
		for _, key := range keys {
			switch field := v[key].(type) {
			case float64:
				return field
			case string:
				if f, err := strconv.ParseFloat(strings.TrimSpace(field), 64); err == nil {
					return provider.FiniteOrZero(f)
				}
			}
		}
	}
	return 0
}

// parseTags reads attribution tags given either as "key:value" strings or
// as a map of tag keys to value lists. Returns nil when no tag is found.
func parseTags(raw json.RawMessage) map[string]string {
	if len(raw) == 0 {
		return nil
	}

	tags := map[string]string{}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		for _, tag := range list {
			key, value, ok := strings.Cut(tag, ":")
			if ok && key != "" && value != "" {
				tags[key] = value
			}
		}
	} else {
		var byKey map[string][]string
		if err := json.Unmarshal(raw, &byKey); err == nil {
			for key, values := range byKey {
				if key != "" && len(values) > 0 && values[0] != "" {
					tags[key] = values[0]
				}
			}
		}
	}

	if len(tags) == 0 {
		return nil
	}
	return tags
}

// monthStart truncates t to the first day of its month
func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
