// Package cli implements the omnicost command tree.
//
// Each vendor command (aws, gcp, azure, datadog) validates its flags, loads
// the configuration, builds the vendor adapter, checks its credentials,
// fetches cost records and prints them to standard output in the selected
// format. Progress and retry logs go to standard error.
package cli
