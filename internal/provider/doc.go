// Package provider defines the vendor-agnostic cost data model.
//
// Every vendor adapter (AWS Cost Explorer, Azure Cost Management, the GCP
// BigQuery billing export and Datadog usage metering) implements
// CostProvider and produces CostRecord values:
//
//	type CostProvider interface {
//		Name() ProviderType
//		DisplayName() string
//		ValidateCredentials(ctx context.Context) (bool, error)
//		FetchCosts(ctx context.Context, params FetchParams) ([]CostRecord, error)
//	}
//
// Common record fields (always populated):
//   - Date, Service, Amount, Currency
//
// Optional fields (adapter-specific):
//   - Tags, Region, Account
//
// Records are built inside a single FetchCosts call, appended to the result
// slice and never modified afterwards.
package provider
