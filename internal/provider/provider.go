package provider

import (
	"context"
)

// ProviderType represents a cost data source
type ProviderType string

// Supported providers
const (
	ProviderAWS     ProviderType = "aws"
	ProviderAzure   ProviderType = "azure"
	ProviderGCP     ProviderType = "gcp"
	ProviderDatadog ProviderType = "datadog"
)

// Dimension is the axis a vendor aggregates cost by
type Dimension string

// Grouping dimensions accepted on the command line
const (
	DimensionService       Dimension = "SERVICE"
	DimensionTag           Dimension = "TAG"
	DimensionRegion        Dimension = "REGION"
	DimensionAccount       Dimension = "ACCOUNT"
	DimensionResourceGroup Dimension = "RESOURCE_GROUP"
)

// Dimensions only understood by the GCP billing export mapping
const (
	DimensionProject Dimension = "PROJECT"
	DimensionSKU     Dimension = "SKU"
)

// Dimensions lists the grouping dimensions in display order
var Dimensions = []Dimension{
	DimensionService,
	DimensionTag,
	DimensionRegion,
	DimensionAccount,
	DimensionResourceGroup,
}

// Default values used when a vendor omits a field
const (
	DefaultCurrency = "USD"
	ServiceUnknown  = "Unknown"
	ServiceTotal    = "Total"
)

// DateLayout is the calendar day format used by every record
const DateLayout = "2006-01-02"

// CostProvider is the interface that all cost adapters must implement
type CostProvider interface {
	// Name returns the provider type (aws, azure, gcp, datadog)
	Name() ProviderType

	// DisplayName returns a human readable vendor API name
	DisplayName() string

	// ValidateCredentials performs one cheap check call. It returns false for
	// recognized authentication failures and an error for anything else.
	ValidateCredentials(ctx context.Context) (bool, error)

	// FetchCosts retrieves normalized cost records for the requested period
	FetchCosts(ctx context.Context, params FetchParams) ([]CostRecord, error)
}

// FetchParams describes one cost query
type FetchParams struct {
	StartDate string    // YYYY-MM-DD, inclusive
	EndDate   string    // YYYY-MM-DD, inclusive
	GroupBy   Dimension // empty means ungrouped

	// Filters is accepted for forward compatibility; no adapter reads it yet
	Filters map[string]string
}

// Grouped reports whether a grouping dimension was requested
func (p FetchParams) Grouped() bool {
	return p.GroupBy != ""
}

// CostRecord represents a single cost entry from any provider
type CostRecord struct {
	Date     string  // YYYY-MM-DD, or the coarsest date the vendor reports
	Service  string  // Label of the grouping dimension in effect
	Amount   float64 // Cost, or a raw usage count for Datadog
	Currency string  // Currency code

	// Optional fields, empty when the vendor does not expose them
	Tags    map[string]string
	Region  string
	Account string
}
