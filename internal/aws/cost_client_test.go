package aws

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	ce "github.com/aws/aws-sdk-go-v2/service/costexplorer"
	cetypes "github.com/aws/aws-sdk-go-v2/service/costexplorer/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zgpcy/omnicost/internal/logger"
	"github.com/zgpcy/omnicost/internal/provider"
	"github.com/zgpcy/omnicost/internal/retry"
)

type mockCostExplorer struct {
	pages  []*ce.GetCostAndUsageOutput
	errs   []error // consumed before pages, one per call
	inputs []ce.GetCostAndUsageInput
	calls  int
}

func (m *mockCostExplorer) GetCostAndUsage(_ context.Context, in *ce.GetCostAndUsageInput, _ ...func(*ce.Options)) (*ce.GetCostAndUsageOutput, error) {
	m.calls++
	m.inputs = append(m.inputs, *in)
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	if len(m.pages) == 0 {
		return &ce.GetCostAndUsageOutput{}, nil
	}
	page := m.pages[0]
	m.pages = m.pages[1:]
	return page, nil
}

type mockIdentity struct {
	out   *sts.GetCallerIdentityOutput
	err   error
	calls int
}

func (m *mockIdentity) GetCallerIdentity(_ context.Context, _ *sts.GetCallerIdentityInput, _ ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	m.calls++
	return m.out, m.err
}

func testExecutor() *retry.Executor {
	return &retry.Executor{MaxAttempts: retry.MaxRetries, BaseDelay: time.Millisecond}
}

func newTestClient(ceAPI CostExplorerAPI, stsAPI IdentityAPI, accountID string) *Client {
	return NewFromAPI(ceAPI, stsAPI, accountID, testExecutor(), logger.Discard())
}

func group(key, amount, unit string) cetypes.Group {
	return cetypes.Group{
		Keys: []string{key},
		Metrics: map[string]cetypes.MetricValue{
			"UnblendedCost": {Amount: awssdk.String(amount), Unit: awssdk.String(unit)},
		},
	}
}

func bucket(start string, groups ...cetypes.Group) cetypes.ResultByTime {
	return cetypes.ResultByTime{
		TimePeriod: &cetypes.DateInterval{Start: awssdk.String(start), End: awssdk.String(start)},
		Groups:     groups,
	}
}

var serviceParams = provider.FetchParams{
	StartDate: "2025-04-01",
	EndDate:   "2025-04-30",
	GroupBy:   provider.DimensionService,
}

func TestFetchCosts_Pagination(t *testing.T) {
	mock := &mockCostExplorer{
		pages: []*ce.GetCostAndUsageOutput{
			{
				ResultsByTime: []cetypes.ResultByTime{
					bucket("2025-04-01", group("Amazon EC2", "150.25", "USD"), group("Amazon S3", "67.89", "USD")),
				},
				NextPageToken: awssdk.String("page-2"),
			},
			{
				ResultsByTime: []cetypes.ResultByTime{
					bucket("2025-04-02", group("AWS Lambda", "3.10", "USD")),
				},
			},
		},
	}

	records, err := newTestClient(mock, &mockIdentity{}, "").FetchCosts(context.Background(), serviceParams)
	require.NoError(t, err)

	assert.Equal(t, 2, mock.calls)
	assert.Nil(t, mock.inputs[0].NextPageToken)
	assert.Equal(t, "page-2", awssdk.ToString(mock.inputs[1].NextPageToken))

	require.Len(t, records, 3)
	assert.Equal(t, provider.CostRecord{Date: "2025-04-01", Service: "Amazon EC2", Amount: 150.25, Currency: "USD"}, records[0])
	assert.Equal(t, "Amazon S3", records[1].Service)
	assert.Equal(t, provider.CostRecord{Date: "2025-04-02", Service: "AWS Lambda", Amount: 3.10, Currency: "USD"}, records[2])
}

func TestFetchCosts_RequestShape(t *testing.T) {
	mock := &mockCostExplorer{}
	_, err := newTestClient(mock, &mockIdentity{}, "").FetchCosts(context.Background(), serviceParams)
	require.NoError(t, err)

	in := mock.inputs[0]
	assert.Equal(t, cetypes.GranularityDaily, in.Granularity)
	assert.Equal(t, []string{"UnblendedCost"}, in.Metrics)
	assert.Equal(t, "2025-04-01", awssdk.ToString(in.TimePeriod.Start))
	assert.Equal(t, "2025-05-01", awssdk.ToString(in.TimePeriod.End), "end date is inclusive on the command line")
	require.Len(t, in.GroupBy, 1)
	assert.Equal(t, cetypes.GroupDefinitionTypeDimension, in.GroupBy[0].Type)
	assert.Equal(t, "SERVICE", awssdk.ToString(in.GroupBy[0].Key))
}

func TestGroupKey(t *testing.T) {
	tests := map[provider.Dimension]string{
		provider.DimensionService:       "SERVICE",
		provider.DimensionAccount:       "LINKED_ACCOUNT",
		provider.DimensionRegion:        "REGION",
		provider.DimensionTag:           "TAG",
		provider.DimensionResourceGroup: "SERVICE",
	}
	for dim, want := range tests {
		assert.Equal(t, want, GroupKey(dim), string(dim))
	}
}

func TestFetchCosts_Ungrouped(t *testing.T) {
	mock := &mockCostExplorer{
		pages: []*ce.GetCostAndUsageOutput{{
			ResultsByTime: []cetypes.ResultByTime{
				{
					TimePeriod: &cetypes.DateInterval{Start: awssdk.String("2025-04-01")},
					Total: map[string]cetypes.MetricValue{
						"UnblendedCost": {Amount: awssdk.String("42.5"), Unit: awssdk.String("USD")},
					},
				},
				{
					TimePeriod: &cetypes.DateInterval{Start: awssdk.String("2025-04-02")},
				},
			},
		}},
	}

	params := provider.FetchParams{StartDate: "2025-04-01", EndDate: "2025-04-02"}
	records, err := newTestClient(mock, &mockIdentity{}, "").FetchCosts(context.Background(), params)
	require.NoError(t, err)

	assert.Empty(t, mock.inputs[0].GroupBy)
	require.Len(t, records, 2)
	assert.Equal(t, provider.CostRecord{Date: "2025-04-01", Service: "Total", Amount: 42.5, Currency: "USD"}, records[0])
	assert.Equal(t, provider.CostRecord{Date: "2025-04-02", Service: "Total", Amount: 0, Currency: "USD"}, records[1])
}

func TestFetchCosts_Defaults(t *testing.T) {
	mock := &mockCostExplorer{
		pages: []*ce.GetCostAndUsageOutput{{
			ResultsByTime: []cetypes.ResultByTime{
				bucket("2025-04-01",
					cetypes.Group{Keys: []string{"Amazon EC2"}, Metrics: map[string]cetypes.MetricValue{}},
					cetypes.Group{Keys: []string{"us-west-2"}, Metrics: map[string]cetypes.MetricValue{
						"UnblendedCost": {Amount: awssdk.String("not-a-number")},
					}},
				),
			},
		}},
	}

	records, err := newTestClient(mock, &mockIdentity{}, "").FetchCosts(context.Background(), serviceParams)
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, r := range records {
		assert.Zero(t, r.Amount)
		assert.Equal(t, "USD", r.Currency)
	}
}

func TestFetchCosts_RegionAndAccount(t *testing.T) {
	mock := &mockCostExplorer{
		pages: []*ce.GetCostAndUsageOutput{
			{ResultsByTime: []cetypes.ResultByTime{bucket("2025-04-01", group("us-east-1", "10", "USD"))}},
			{ResultsByTime: []cetypes.ResultByTime{bucket("2025-04-01", group("123456789012", "20", "USD"))}},
		},
	}
	client := newTestClient(mock, &mockIdentity{}, "")

	params := serviceParams
	params.GroupBy = provider.DimensionRegion
	records, err := client.FetchCosts(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", records[0].Region)

	params.GroupBy = provider.DimensionAccount
	records, err = client.FetchCosts(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, "123456789012", records[0].Account)
	assert.Equal(t, "LINKED_ACCOUNT", awssdk.ToString(mock.inputs[1].GroupBy[0].Key))
}

func TestFetchCosts_RetriesThrottling(t *testing.T) {
	throttled := &smithy.GenericAPIError{Code: "ThrottlingException", Message: "Rate exceeded"}
	mock := &mockCostExplorer{
		errs: []error{throttled, throttled},
		pages: []*ce.GetCostAndUsageOutput{{
			ResultsByTime: []cetypes.ResultByTime{bucket("2025-04-01", group("Amazon EC2", "1", "USD"))},
		}},
	}

	records, err := newTestClient(mock, &mockIdentity{}, "").FetchCosts(context.Background(), serviceParams)
	require.NoError(t, err)
	assert.Equal(t, 3, mock.calls)
	assert.Len(t, records, 1)
}

func TestFetchCosts_FailedPageDiscardsEarlierPages(t *testing.T) {
	mock := &mockCostExplorer{
		errs: []error{nil, errors.New("AccessDeniedException: not authorized")},
		pages: []*ce.GetCostAndUsageOutput{{
			ResultsByTime: []cetypes.ResultByTime{bucket("2025-04-01", group("Amazon EC2", "1", "USD"))},
			NextPageToken: awssdk.String("next"),
		}},
	}

	records, err := newTestClient(mock, &mockIdentity{}, "").FetchCosts(context.Background(), serviceParams)
	require.Error(t, err)
	assert.Nil(t, records)
	assert.Contains(t, err.Error(), "AccessDeniedException")
	assert.Equal(t, 2, mock.calls, "non-retriable error is not retried")
}

func TestFetchCosts_InvalidEndDate(t *testing.T) {
	mock := &mockCostExplorer{}
	_, err := newTestClient(mock, &mockIdentity{}, "").FetchCosts(context.Background(), provider.FetchParams{
		StartDate: "2025-04-01",
		EndDate:   "April",
	})
	require.Error(t, err)
	assert.Zero(t, mock.calls)
}

func TestValidateCredentials(t *testing.T) {
	tests := []struct {
		name      string
		identity  *mockIdentity
		accountID string
		want      bool
		wantErr   bool
		wantCalls int
	}{
		{
			name:      "valid",
			identity:  &mockIdentity{out: &sts.GetCallerIdentityOutput{Account: awssdk.String("123456789012")}},
			want:      true,
			wantCalls: 1,
		},
		{
			name:      "matching account",
			identity:  &mockIdentity{out: &sts.GetCallerIdentityOutput{Account: awssdk.String("123456789012")}},
			accountID: "123456789012",
			want:      true,
			wantCalls: 1,
		},
		{
			name:      "account mismatch",
			identity:  &mockIdentity{out: &sts.GetCallerIdentityOutput{Account: awssdk.String("999999999999")}},
			accountID: "123456789012",
			wantErr:   true,
			wantCalls: 1,
		},
		{
			name:      "unrecognized client",
			identity:  &mockIdentity{err: &smithy.GenericAPIError{Code: "UnrecognizedClientException"}},
			want:      false,
			wantCalls: 1,
		},
		{
			name:      "missing credentials",
			identity:  &mockIdentity{err: fmt.Errorf("get identity: %w", errors.New("failed to retrieve credentials"))},
			want:      false,
			wantCalls: 1,
		},
		{
			name:      "missing credentials behind refused IMDS connection",
			identity:  &mockIdentity{err: errors.New("failed to retrieve credentials: dial tcp 169.254.169.254:80: connect: connection refused")},
			want:      false,
			wantCalls: 1,
		},
		{
			name:      "unexpected error is fatal",
			identity:  &mockIdentity{err: errors.New("InternalFailure")},
			wantErr:   true,
			wantCalls: 1,
		},
		{
			name:      "transient error retried then fatal",
			identity:  &mockIdentity{err: errors.New("dial tcp: connection refused")},
			wantErr:   true,
			wantCalls: retry.MaxRetries,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := newTestClient(&mockCostExplorer{}, tt.identity, tt.accountID).ValidateCredentials(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, ok)
			}
			assert.Equal(t, tt.wantCalls, tt.identity.calls)
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want retry.Class
	}{
		{"throttling code", &smithy.GenericAPIError{Code: "ThrottlingException"}, retry.Throttled},
		{"too many requests", &smithy.GenericAPIError{Code: "TooManyRequestsException"}, retry.Throttled},
		{"service unavailable", &smithy.GenericAPIError{Code: "ServiceUnavailable"}, retry.Unavailable},
		{"request timeout", &smithy.GenericAPIError{Code: "RequestTimeoutException"}, retry.Timeout},
		{"networking", &smithy.GenericAPIError{Code: "NetworkingError"}, retry.NetworkUnreachable},
		{"deadline", context.DeadlineExceeded, retry.Timeout},
		{"timeout message", errors.New("read: timeout awaiting response"), retry.Timeout},
		{"refused message", errors.New("connect ECONNREFUSED 127.0.0.1:443"), retry.NetworkUnreachable},
		{"access denied", &smithy.GenericAPIError{Code: "AccessDeniedException"}, retry.Other},
		{"validation", errors.New("ValidationException: bad date"), retry.Other},
		{"credentials wrapping timeout", errors.New("failed to retrieve credentials: i/o timeout"), retry.Other},
		{"unrecognized client", &smithy.GenericAPIError{Code: "UnrecognizedClientException"}, retry.Other},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}
