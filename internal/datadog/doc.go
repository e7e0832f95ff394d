// Package datadog provides the Datadog cost provider backed by the Usage
// Metering API.
//
// Without grouping the monthly usage summary is read and each non-zero
// product figure (APM hosts, APM traces, logs, infrastructure hosts,
// synthetics, RUM sessions) becomes one record. With grouping the monthly
// usage attribution is read instead. Amounts are usage quantities; no
// pricing is applied.
package datadog
