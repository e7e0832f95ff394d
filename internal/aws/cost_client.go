package aws

import (
	"context"
	"fmt"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	ce "github.com/aws/aws-sdk-go-v2/service/costexplorer"
	cetypes "github.com/aws/aws-sdk-go-v2/service/costexplorer/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/samber/lo"
	"github.com/zgpcy/omnicost/internal/config"
	"github.com/zgpcy/omnicost/internal/logger"
	"github.com/zgpcy/omnicost/internal/provider"
	"github.com/zgpcy/omnicost/internal/retry"
)

// metricUnblendedCost is the only Cost Explorer metric requested
const metricUnblendedCost = "UnblendedCost"

// groupKeys maps grouping dimensions to Cost Explorer dimension keys
var groupKeys = map[provider.Dimension]string{
	provider.DimensionService: "SERVICE",
	provider.DimensionAccount: "LINKED_ACCOUNT",
	provider.DimensionRegion:  "REGION",
	provider.DimensionTag:     "TAG",
}

// CostExplorerAPI is the subset of the Cost Explorer client used by this package
type CostExplorerAPI interface {
	GetCostAndUsage(ctx context.Context, params *ce.GetCostAndUsageInput, optFns ...func(*ce.Options)) (*ce.GetCostAndUsageOutput, error)
}

// IdentityAPI is the subset of the STS client used for the credential check
type IdentityAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// Client implements provider.CostProvider on top of AWS Cost Explorer
type Client struct {
	costExplorer CostExplorerAPI
	identity     IdentityAPI
	accountID    string
	exec         *retry.Executor
	logger       *logger.Logger
}

// Verify that Client implements provider.CostProvider
var _ provider.CostProvider = (*Client)(nil)

// NewClient loads the SDK default credential chain for the configured region.
// The SDK retryer is limited to a single attempt; retries belong to exec.
func NewClient(ctx context.Context, cfg config.AWSConfig, exec *retry.Executor, log *logger.Logger) (*Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithRetryMaxAttempts(1),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}

	return NewFromAPI(ce.NewFromConfig(awsCfg), sts.NewFromConfig(awsCfg), cfg.AccountID, exec, log), nil
}

// NewFromAPI creates a Client from explicit API implementations
func NewFromAPI(costExplorer CostExplorerAPI, identity IdentityAPI, accountID string, exec *retry.Executor, log *logger.Logger) *Client {
	return &Client{
		costExplorer: costExplorer,
		identity:     identity,
		accountID:    accountID,
		exec:         exec,
		logger:       log.WithFields("provider", provider.ProviderAWS),
	}
}

// Name returns the provider type
func (c *Client) Name() provider.ProviderType {
	return provider.ProviderAWS
}

// DisplayName returns the vendor API name
func (c *Client) DisplayName() string {
	return "AWS Cost Explorer"
}

// ValidateCredentials calls sts:GetCallerIdentity. When an account ID was
// configured, the caller identity must belong to it.
func (c *Client) ValidateCredentials(ctx context.Context) (bool, error) {
	out, err := retry.Do(ctx, c.exec, "GetCallerIdentity", Classify,
		func(ctx context.Context) (*sts.GetCallerIdentityOutput, error) {
			return c.identity.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
		})
	if err != nil {
		if IsCredentialError(err) {
			c.logger.Error("Invalid AWS credentials", "error", err)
			return false, nil
		}
		return false, err
	}

	account := awssdk.ToString(out.Account)
	if c.accountID != "" && account != c.accountID {
		return false, fmt.Errorf("AWS credentials belong to account %s, expected %s", account, c.accountID)
	}

	c.logger.Debug("AWS credentials valid", "account", account, "arn", awssdk.ToString(out.Arn))
	return true, nil
}

// FetchCosts queries daily unblended cost, following NextPageToken until the
// last page. A failed page fails the whole fetch.
func (c *Client) FetchCosts(ctx context.Context, params provider.FetchParams) ([]provider.CostRecord, error) {
	input, err := buildInput(params)
	if err != nil {
		return nil, err
	}

	var (
		records []provider.CostRecord
		token   *string
	)

	for page := 1; ; page++ {
		input.NextPageToken = token

		out, err := retry.Do(ctx, c.exec, "GetCostAndUsage", Classify,
			func(ctx context.Context) (*ce.GetCostAndUsageOutput, error) {
				return c.costExplorer.GetCostAndUsage(ctx, input)
			})
		if err != nil {
			return nil, fmt.Errorf("failed to get cost and usage: %w", err)
		}

		pageRecords := normalize(out, params.GroupBy)
		c.logger.Debug("Fetched Cost Explorer page", "page", page, "records", len(pageRecords))
		records = append(records, pageRecords...)

		token = out.NextPageToken
		if awssdk.ToString(token) == "" {
			break
		}
	}

	return records, nil
}

// buildInput creates the GetCostAndUsage request. Cost Explorer treats End as
// exclusive, so the inclusive end date is advanced by one day.
func buildInput(params provider.FetchParams) (*ce.GetCostAndUsageInput, error) {
	end, err := time.Parse(provider.DateLayout, params.EndDate)
	if err != nil {
		return nil, fmt.Errorf("invalid end date %q: %w", params.EndDate, err)
	}

	input := &ce.GetCostAndUsageInput{
		TimePeriod: &cetypes.DateInterval{
			Start: awssdk.String(params.StartDate),
			End:   awssdk.String(end.AddDate(0, 0, 1).Format(provider.DateLayout)),
		},
		Granularity: cetypes.GranularityDaily,
		Metrics:     []string{metricUnblendedCost},
	}

	if params.Grouped() {
		input.GroupBy = []cetypes.GroupDefinition{
			{
				Type: cetypes.GroupDefinitionTypeDimension,
				Key:  awssdk.String(GroupKey(params.GroupBy)),
			},
		}
	}

	return input, nil
}

// GroupKey returns the Cost Explorer dimension for a grouping dimension,
// defaulting to SERVICE
func GroupKey(d provider.Dimension) string {
	if key, ok := groupKeys[d]; ok {
		return key
	}
	return groupKeys[provider.DimensionService]
}

// normalize converts one Cost Explorer page into cost records
func normalize(out *ce.GetCostAndUsageOutput, groupBy provider.Dimension) []provider.CostRecord {
	var records []provider.CostRecord

	for _, bucket := range out.ResultsByTime {
		date := ""
		if bucket.TimePeriod != nil {
			date = awssdk.ToString(bucket.TimePeriod.Start)
		}

		if groupBy == "" {
			amount, currency := metricValue(bucket.Total)
			records = append(records, provider.CostRecord{
				Date:     date,
				Service:  provider.ServiceTotal,
				Amount:   amount,
				Currency: currency,
			})
			continue
		}

		for _, group := range bucket.Groups {
			amount, currency := metricValue(group.Metrics)
			record := provider.CostRecord{
				Date:     date,
				Service:  lo.CoalesceOrEmpty(lo.FirstOrEmpty(group.Keys), provider.ServiceUnknown),
				Amount:   amount,
				Currency: currency,
			}

			switch groupBy {
			case provider.DimensionRegion:
				record.Region = record.Service
			case provider.DimensionAccount:
				record.Account = record.Service
			}

			records = append(records, record)
		}
	}

	return records
}

// metricValue extracts the unblended cost amount (default 0) and unit (default USD)
func metricValue(metrics map[string]cetypes.MetricValue) (float64, string) {
	m, ok := metrics[metricUnblendedCost]
	if !ok {
		return 0, provider.DefaultCurrency
	}

	return provider.ParseAmount(awssdk.ToString(m.Amount)), lo.CoalesceOrEmpty(awssdk.ToString(m.Unit), provider.DefaultCurrency)
}
