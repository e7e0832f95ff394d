package gcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/samber/lo"
	"github.com/zgpcy/omnicost/internal/config"
	"github.com/zgpcy/omnicost/internal/logger"
	"github.com/zgpcy/omnicost/internal/provider"
	"github.com/zgpcy/omnicost/internal/retry"
	"google.golang.org/api/iterator"
)

// groupColumns maps grouping dimensions to billing export columns.
// Dimensions not listed here aggregate into a single "Total" series.
var groupColumns = map[provider.Dimension]string{
	provider.DimensionService: "service.description",
	provider.DimensionProject: "project.id",
	provider.DimensionRegion:  "location.location",
	provider.DimensionSKU:     "sku.description",
}

var (
	projectIDPattern = regexp.MustCompile(`^[a-z0-9.:-]+$`)
	datasetPattern   = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
)

// ErrNoCredentials wraps a failure to create the BigQuery client, which
// happens when Application Default Credentials are missing or unreadable
var ErrNoCredentials = errors.New("GCP credentials unavailable")

// Row is one aggregated billing export row. Every column is read as a
// string; missing values are empty.
type Row struct {
	Date     string
	Service  string
	Amount   string
	Currency string
	Labels   string
}

// QueryRunner runs a standard SQL query with named parameters
type QueryRunner interface {
	Query(ctx context.Context, sql string, params []bigquery.QueryParameter) ([]Row, error)
}

// Client queries the BigQuery billing export and implements provider.CostProvider
type Client struct {
	runner QueryRunner
	table  string
	exec   *retry.Executor
	logger *logger.Logger
}

// Verify that Client implements provider.CostProvider
var _ provider.CostProvider = (*Client)(nil)

// NewClient creates a Client for the project. The BigQuery client is created
// with Application Default Credentials on the first query, so missing
// credentials surface through ValidateCredentials.
func NewClient(cfg config.GCPConfig, exec *retry.Executor, log *logger.Logger) (*Client, error) {
	return NewFromRunner(&bigQueryRunner{projectID: cfg.ProjectID}, cfg, exec, log)
}

// NewFromRunner creates a Client that sends queries to runner
func NewFromRunner(runner QueryRunner, cfg config.GCPConfig, exec *retry.Executor, log *logger.Logger) (*Client, error) {
	table, err := exportTable(cfg)
	if err != nil {
		return nil, err
	}
	return newClient(runner, table, exec, log), nil
}

func newClient(runner QueryRunner, table string, exec *retry.Executor, log *logger.Logger) *Client {
	return &Client{
		runner: runner,
		table:  table,
		exec:   exec,
		logger: log.WithFields("provider", provider.ProviderGCP),
	}
}

// exportTable returns the wildcard billing export table for the project and dataset
func exportTable(cfg config.GCPConfig) (string, error) {
	if !projectIDPattern.MatchString(cfg.ProjectID) {
		return "", fmt.Errorf("invalid GCP project ID %q", cfg.ProjectID)
	}
	if !datasetPattern.MatchString(cfg.Dataset) {
		return "", fmt.Errorf("invalid BigQuery dataset %q", cfg.Dataset)
	}
	return fmt.Sprintf("%s.%s.gcp_billing_export_v1_*", cfg.ProjectID, cfg.Dataset), nil
}

// Name returns the provider type
func (c *Client) Name() provider.ProviderType {
	return provider.ProviderGCP
}

// DisplayName returns the vendor API name
func (c *Client) DisplayName() string {
	return "GCP BigQuery Billing Export"
}

// Close releases the BigQuery client, if one was created
func (c *Client) Close() error {
	if closer, ok := c.runner.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// ValidateCredentials reads one row of the billing export
func (c *Client) ValidateCredentials(ctx context.Context) (bool, error) {
	sql := fmt.Sprintf("SELECT 1 FROM `%s` LIMIT 1", c.table)
	if _, err := c.query(ctx, "ValidateCredentials", sql, nil); err != nil {
		if IsCredentialError(err) {
			c.logger.Error("Invalid GCP credentials or dataset not found", "error", err)
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// FetchCosts sums cost per day, group and currency over the inclusive date range
func (c *Client) FetchCosts(ctx context.Context, params provider.FetchParams) ([]provider.CostRecord, error) {
	sql := buildQuery(c.table, params.GroupBy)
	queryParams := []bigquery.QueryParameter{
		{Name: "start_date", Value: params.StartDate},
		{Name: "end_date", Value: params.EndDate},
	}

	c.logger.Debug("Querying BigQuery billing export",
		"table", c.table,
		"start_date", params.StartDate,
		"end_date", params.EndDate)

	rows, err := c.query(ctx, "Query", sql, queryParams)
	if err != nil {
		return nil, fmt.Errorf("billing export query failed: %w", err)
	}

	return lo.Map(rows, func(row Row, _ int) provider.CostRecord {
		return toRecord(row, params.GroupBy)
	}), nil
}

func (c *Client) query(ctx context.Context, operation, sql string, params []bigquery.QueryParameter) ([]Row, error) {
	return retry.Do(ctx, c.exec, operation, Classify,
		func(ctx context.Context) ([]Row, error) {
			return c.runner.Query(ctx, sql, params)
		})
}

// buildQuery returns the aggregation query. Dates are bound as the
// @start_date and @end_date parameters.
func buildQuery(table string, groupBy provider.Dimension) string {
	service := "'Total'"
	if column, ok := groupColumns[groupBy]; ok {
		service = column
	}

	return fmt.Sprintf(`SELECT
  FORMAT_DATE('%%Y-%%m-%%d', DATE(usage_start_time)) AS date,
  %s AS service,
  CAST(SUM(cost) AS STRING) AS amount,
  currency,
  TO_JSON_STRING(labels) AS labels_json
FROM `+"`%s`"+`
WHERE DATE(usage_start_time) >= DATE(@start_date)
  AND DATE(usage_start_time) <= DATE(@end_date)
GROUP BY 1, 2, 4, 5
ORDER BY 1, 2`, service, table)
}

// toRecord maps an export row, applying the Unknown/0/USD defaults
func toRecord(row Row, groupBy provider.Dimension) provider.CostRecord {
	record := provider.CostRecord{
		Date:     row.Date,
		Service:  lo.CoalesceOrEmpty(row.Service, provider.ServiceUnknown),
		Amount:   provider.ParseAmount(row.Amount),
		Currency: lo.CoalesceOrEmpty(row.Currency, provider.DefaultCurrency),
		Tags:     parseLabels(row.Labels),
	}
	if groupBy == provider.DimensionRegion {
		record.Region = row.Service
	}
	return record
}

// label is one element of the export's repeated labels column
type label struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// parseLabels decodes the labels JSON, either a flat object or the export's
// [{"key":..,"value":..}] array. Undecodable input yields an empty map.
func parseLabels(raw string) map[string]string {
	tags := map[string]string{}

	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return tags
	}

	if strings.HasPrefix(raw, "[") {
		var labels []label
		if err := json.Unmarshal([]byte(raw), &labels); err == nil {
			for _, l := range labels {
				tags[l.Key] = l.Value
			}
		}
		return tags
	}

	var object map[string]any
	if err := json.Unmarshal([]byte(raw), &object); err == nil {
		for k, v := range object {
			if s, ok := v.(string); ok {
				tags[k] = s
			} else {
				tags[k] = fmt.Sprint(v)
			}
		}
	}
	return tags
}

// bigQueryRunner runs queries with a BigQuery client created on first use
type bigQueryRunner struct {
	projectID string
	client    *bigquery.Client
}

// connect returns the BigQuery client, creating it on the first call. The
// client outlives the per-attempt context, so it is built without its
// cancellation.
func (r *bigQueryRunner) connect(ctx context.Context) (*bigquery.Client, error) {
	if r.client != nil {
		return r.client, nil
	}

	client, err := bigquery.NewClient(context.WithoutCancel(ctx), r.projectID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create BigQuery client: %w", ErrNoCredentials, err)
	}
	r.client = client
	return client, nil
}

func (r *bigQueryRunner) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}

// exportRow is the destination struct for result rows. Columns absent from
// the result (for example in the validation query) are left null.
type exportRow struct {
	Date       bigquery.NullString `bigquery:"date"`
	Service    bigquery.NullString `bigquery:"service"`
	Amount     bigquery.NullString `bigquery:"amount"`
	Currency   bigquery.NullString `bigquery:"currency"`
	LabelsJSON bigquery.NullString `bigquery:"labels_json"`
}

func (r *bigQueryRunner) Query(ctx context.Context, sql string, params []bigquery.QueryParameter) ([]Row, error) {
	client, err := r.connect(ctx)
	if err != nil {
		return nil, err
	}

	q := client.Query(sql)
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, err
	}

	var rows []Row
	for {
		var row exportRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, Row{
			Date:     row.Date.StringVal,
			Service:  row.Service.StringVal,
			Amount:   row.Amount.StringVal,
			Currency: row.Currency.StringVal,
			Labels:   row.LabelsJSON.StringVal,
		})
	}
	return rows, nil
}
