// Package gcp provides the GCP cost provider backed by the BigQuery billing
// export.
//
// Costs are read from the wildcard table
// <project>.<dataset>.gcp_billing_export_v1_* with a single aggregation
// query per fetch. The query sums cost per day, grouping value and currency;
// the date range is bound through query parameters. Labels are returned as
// JSON and decoded into record tags.
package gcp
