package datadog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV1"
	"github.com/zgpcy/omnicost/internal/config"
)

// SummaryRow holds the usage fields read from one monthly usage summary entry.
// Absent fields are zero.
type SummaryRow struct {
	Date                         string  `json:"date"`
	APMHostTop99p                float64 `json:"apm_host_top99p"`
	IngestedEventsBytesSum       float64 `json:"ingested_events_bytes_sum"`
	IndexedEventsCountSum        float64 `json:"indexed_events_count_sum"`
	InfraHostTop99p              float64 `json:"infra_host_top99p"`
	SyntheticsCheckCallsCountSum float64 `json:"synthetics_check_calls_count_sum"`
	RUMTotalSessionCountSum      float64 `json:"rum_total_session_count_sum"`
}

// AttributionRow is one monthly usage attribution entry
type AttributionRow struct {
	Month  string          `json:"month"`
	Tags   json.RawMessage `json:"tags"`
	Values map[string]any  `json:"values"`
}

// UsageAPI is the subset of the Usage Metering API used by this package
type UsageAPI interface {
	UsageSummary(ctx context.Context, start, end time.Time) ([]SummaryRow, error)
	MonthlyAttribution(ctx context.Context, start, end time.Time, fields string) ([]AttributionRow, error)
}

// StatusError carries the HTTP status of a failed API call
type StatusError struct {
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%d %s: %v", e.StatusCode, http.StatusText(e.StatusCode), e.Err)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// meteringAPI implements UsageAPI with the Datadog API client. Credentials
// and site are attached to every request context.
type meteringAPI struct {
	api    *datadogV1.UsageMeteringApi
	keys   map[string]datadog.APIKey
	server map[string]string
}

func newMeteringAPI(cfg config.DatadogConfig) *meteringAPI {
	configuration := datadog.NewConfiguration()
	configuration.RetryConfiguration.EnableRetry = false

	return &meteringAPI{
		api: datadogV1.NewUsageMeteringApi(datadog.NewAPIClient(configuration)),
		keys: map[string]datadog.APIKey{
			"apiKeyAuth": {Key: cfg.APIKey},
			"appKeyAuth": {Key: cfg.AppKey},
		},
		server: map[string]string{"site": cfg.Site},
	}
}

func (m *meteringAPI) withAuth(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, datadog.ContextAPIKeys, m.keys)
	return context.WithValue(ctx, datadog.ContextServerVariables, m.server)
}

func (m *meteringAPI) UsageSummary(ctx context.Context, start, end time.Time) ([]SummaryRow, error) {
	resp, httpResp, err := m.api.GetUsageSummary(m.withAuth(ctx), start,
		*datadogV1.NewGetUsageSummaryOptionalParameters().
			WithEndMonth(end).
			WithIncludeOrgDetails(true))
	if err != nil {
		return nil, withStatus(httpResp, err)
	}

	var rows []SummaryRow
	if err := remarshal(resp.Usage, &rows); err != nil {
		return nil, fmt.Errorf("decode usage summary: %w", err)
	}
	return rows, nil
}

// attributionPage is the pagination metadata of an attribution response
type attributionPage struct {
	Pagination struct {
		NextRecordID *string `json:"next_record_id"`
	} `json:"pagination"`
}

func (m *meteringAPI) MonthlyAttribution(ctx context.Context, start, end time.Time, fields string) ([]AttributionRow, error) {
	var (
		rows []AttributionRow
		next *string
	)

	for {
		opts := datadogV1.NewGetMonthlyUsageAttributionOptionalParameters().WithEndMonth(end)
		if next != nil {
			opts = opts.WithNextRecordId(*next)
		}

		resp, httpResp, err := m.api.GetMonthlyUsageAttribution(m.withAuth(ctx), start,
			datadogV1.MonthlyUsageAttributionSupportedMetrics(fields), *opts)
		if err != nil {
			return nil, withStatus(httpResp, err)
		}

		var page []AttributionRow
		if err := remarshal(resp.Usage, &page); err != nil {
			return nil, fmt.Errorf("decode usage attribution: %w", err)
		}
		rows = append(rows, page...)

		var meta attributionPage
		if resp.Metadata != nil {
			if err := remarshal(resp.Metadata, &meta); err != nil {
				return nil, fmt.Errorf("decode usage attribution metadata: %w", err)
			}
		}
		if meta.Pagination.NextRecordID == nil || *meta.Pagination.NextRecordID == "" {
			return rows, nil
		}
		next = meta.Pagination.NextRecordID
	}
}

// withStatus attaches the response status to err when the server answered
func withStatus(resp *http.Response, err error) error {
	if resp != nil && resp.StatusCode >= http.StatusBadRequest {
		return &StatusError{StatusCode: resp.StatusCode, Err: err}
	}
	return err
}

// remarshal copies src into dst through its JSON form, keeping only the
// fields dst declares
func remarshal(src, dst any) error {
	data, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}
