package azure

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/costmanagement/armcostmanagement"
	"github.com/zgpcy/omnicost/internal/clock"
	"github.com/zgpcy/omnicost/internal/config"
	"github.com/zgpcy/omnicost/internal/logger"
	"github.com/zgpcy/omnicost/internal/provider"
	"github.com/zgpcy/omnicost/internal/retry"
)

// Response column names
const (
	columnUsageDate = "UsageDate"
	columnDate      = "Date"
	columnCost      = "Cost"
)

// groupings maps grouping dimensions to Cost Management dimension names.
// Dimensions not listed here are queried without grouping.
var groupings = map[provider.Dimension]string{
	provider.DimensionService:       "ServiceName",
	provider.DimensionRegion:        "ResourceLocation",
	provider.DimensionResourceGroup: "ResourceGroupName",
	provider.DimensionTag:           "Tags",
}

// QueryAPI is the subset of the Cost Management query client used by this package
type QueryAPI interface {
	Usage(ctx context.Context, scope string, parameters armcostmanagement.QueryDefinition, options *armcostmanagement.QueryClientUsageOptions) (armcostmanagement.QueryClientUsageResponse, error)
}

// Client wraps the Azure Cost Management client and implements provider.CostProvider
type Client struct {
	client         QueryAPI
	subscriptionID string
	exec           *retry.Executor
	logger         *logger.Logger
	clock          clock.Clock // Time provider for testing
}

// Verify that Client implements provider.CostProvider
var _ provider.CostProvider = (*Client)(nil)

// NewClient creates a Cost Management client authenticated with a service
// principal. The azcore retry policy is disabled; retries belong to exec.
func NewClient(cfg config.AzureConfig, subscriptionID string, exec *retry.Executor, log *logger.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cred, err := azidentity.NewClientSecretCredential(cfg.TenantID, cfg.ClientID, cfg.ClientSecret, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}

	client, err := armcostmanagement.NewQueryClient(cred, &arm.ClientOptions{
		ClientOptions: policy.ClientOptions{
			Retry: policy.RetryOptions{MaxRetries: -1},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create cost management client: %w", err)
	}

	return NewFromAPI(client, subscriptionID, exec, log, clock.RealClock{}), nil
}

// NewFromAPI creates a Client from an explicit query API and clock
func NewFromAPI(api QueryAPI, subscriptionID string, exec *retry.Executor, log *logger.Logger, clk clock.Clock) *Client {
	return &Client{
		client:         api,
		subscriptionID: subscriptionID,
		exec:           exec,
		logger:         log.WithFields("provider", provider.ProviderAzure, "subscription_id", subscriptionID),
		clock:          clk,
	}
}

// Name returns the provider type
func (c *Client) Name() provider.ProviderType {
	return provider.ProviderAzure
}

// DisplayName returns the vendor API name
func (c *Client) DisplayName() string {
	return "Azure Cost Management"
}

func (c *Client) scope() string {
	return fmt.Sprintf("/subscriptions/%s", c.subscriptionID)
}

// ValidateCredentials runs an ungrouped query covering the last day
func (c *Client) ValidateCredentials(ctx context.Context) (bool, error) {
	now := c.clock.Now()
	_, err := c.usage(ctx, "ValidateCredentials", queryDefinition(now.AddDate(0, 0, -1), now, nil))
	if err != nil {
		if IsCredentialError(err) {
			c.logger.Error("Invalid Azure credentials or subscription not found", "error", err)
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// FetchCosts queries daily cost for the subscription
func (c *Client) FetchCosts(ctx context.Context, params provider.FetchParams) ([]provider.CostRecord, error) {
	startDate, err := time.Parse(provider.DateLayout, params.StartDate)
	if err != nil {
		return nil, fmt.Errorf("invalid start date %q: %w", params.StartDate, err)
	}
	endDate, err := time.Parse(provider.DateLayout, params.EndDate)
	if err != nil {
		return nil, fmt.Errorf("invalid end date %q: %w", params.EndDate, err)
	}

	dimension, grouped := groupings[params.GroupBy]

	var grouping []*armcostmanagement.QueryGrouping
	if grouped {
		groupType := armcostmanagement.QueryColumnTypeDimension
		grouping = append(grouping, &armcostmanagement.QueryGrouping{
			Type: &groupType,
			Name: stringPtr(dimension),
		})
	}

	c.logger.Debug("Querying Azure Cost Management API",
		"start_date", params.StartDate,
		"end_date", params.EndDate,
		"grouping", dimension)

	resp, err := c.usage(ctx, "Usage", queryDefinition(startDate, endDate, grouping))
	if err != nil {
		return nil, fmt.Errorf("cost query failed for date range %s to %s: %w",
			params.StartDate, params.EndDate, err)
	}

	return parseResponse(resp.QueryResult, params.GroupBy, dimension, grouped), nil
}

func (c *Client) usage(ctx context.Context, operation string, def armcostmanagement.QueryDefinition) (armcostmanagement.QueryClientUsageResponse, error) {
	return retry.Do(ctx, c.exec, operation, Classify,
		func(ctx context.Context) (armcostmanagement.QueryClientUsageResponse, error) {
			return c.client.Usage(ctx, c.scope(), def, nil)
		})
}

// queryDefinition builds a daily Usage query summing Cost over a custom time period
func queryDefinition(from, to time.Time, grouping []*armcostmanagement.QueryGrouping) armcostmanagement.QueryDefinition {
	queryType := armcostmanagement.ExportTypeUsage
	timeframe := armcostmanagement.TimeframeTypeCustom
	granularity := armcostmanagement.GranularityTypeDaily

	return armcostmanagement.QueryDefinition{
		Type:      &queryType,
		Timeframe: &timeframe,
		TimePeriod: &armcostmanagement.QueryTimePeriod{
			From: &from,
			To:   &to,
		},
		Dataset: &armcostmanagement.QueryDataset{
			Granularity: &granularity,
			Aggregation: map[string]*armcostmanagement.QueryAggregation{
				"totalCost": {
					Name:     stringPtr(columnCost),
					Function: functionPtr(armcostmanagement.FunctionTypeSum),
				},
			},
			Grouping: grouping,
		},
	}
}

// rowLayout holds the row positions of the date, dimension and cost values.
// dimension is -1 when the value is not present.
type rowLayout struct {
	date      int
	dimension int
	cost      int
}

// resolveLayout locates values by column name when the response names its
// columns, and otherwise assumes date first, then dimension (when grouped),
// then cost.
func resolveLayout(columns []*armcostmanagement.QueryColumn, dimension string, grouped bool) rowLayout {
	columnMap := buildColumnMap(columns)

	dateIdx, hasDate := columnMap[columnUsageDate]
	if !hasDate {
		dateIdx, hasDate = columnMap[columnDate]
	}
	costIdx, hasCost := columnMap[columnCost]

	if hasDate && hasCost {
		layout := rowLayout{date: dateIdx, dimension: -1, cost: costIdx}
		if idx, ok := columnMap[dimension]; ok && grouped {
			layout.dimension = idx
		}
		return layout
	}

	if grouped {
		return rowLayout{date: 0, dimension: 1, cost: 2}
	}
	return rowLayout{date: 0, dimension: -1, cost: 1}
}

// buildColumnMap creates a map of column names to their indices
func buildColumnMap(columns []*armcostmanagement.QueryColumn) map[string]int {
	columnMap := make(map[string]int, len(columns))
	for i, col := range columns {
		if col != nil && col.Name != nil {
			columnMap[*col.Name] = i
		}
	}
	return columnMap
}

// parseResponse converts a query result into cost records
func parseResponse(result armcostmanagement.QueryResult, groupBy provider.Dimension, dimension string, grouped bool) []provider.CostRecord {
	var records []provider.CostRecord

	if result.Properties == nil || result.Properties.Rows == nil {
		return records
	}

	layout := resolveLayout(result.Properties.Columns, dimension, grouped)

	for _, row := range result.Properties.Rows {
		if len(row) <= layout.cost || len(row) <= layout.date {
			continue
		}

		record := provider.CostRecord{
			Date:     parseDate(row[layout.date]),
			Service:  provider.ServiceTotal,
			Amount:   parseCost(row[layout.cost]),
			Currency: provider.DefaultCurrency,
		}

		if grouped {
			record.Service = provider.ServiceUnknown
			if layout.dimension >= 0 && layout.dimension < len(row) {
				if value := stringValue(row[layout.dimension]); value != "" {
					record.Service = value
				}
			}
			if groupBy == provider.DimensionRegion {
				record.Region = record.Service
			}
		}

		records = append(records, record)
	}

	return records
}

// stringValue renders a cell as a string, treating nil as empty
func stringValue(value any) string {
	if value == nil {
		return ""
	}
	s := fmt.Sprintf("%v", value)
	if s == "<nil>" {
		return ""
	}
	return s
}

// parseCost extracts and converts cost value to float64
func parseCost(value any) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		return provider.ParseAmount(v)
	default:
		return 0
	}
}

// formatDateValue converts various date types to string
func formatDateValue(value any) string {
	switch v := value.(type) {
	case int, int64:
		return fmt.Sprintf("%d", v)
	case float64:
		return fmt.Sprintf("%.0f", v)
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

// extractDigits extracts only digit characters from a string
func extractDigits(s string) string {
	var digits strings.Builder
	for _, ch := range s {
		if ch >= '0' && ch <= '9' {
			digits.WriteRune(ch)
		}
	}
	return digits.String()
}

// parseDate turns a YYYYMMDD value (number or string) into YYYY-MM-DD.
// Values with fewer than eight digits are returned as their digits.
func parseDate(value any) string {
	digits := extractDigits(formatDateValue(value))
	if len(digits) < 8 {
		return digits
	}
	return fmt.Sprintf("%s-%s-%s", digits[0:4], digits[4:6], digits[6:8])
}

func stringPtr(s string) *string {
	return &s
}

func functionPtr(f armcostmanagement.FunctionType) *armcostmanagement.FunctionType {
	return &f
}
