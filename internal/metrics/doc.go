// Package metrics records Prometheus metrics for a single omnicost run.
//
// A Recorder owns a private registry (no global state) and exposes:
//   - omnicost_api_attempts_total: vendor API call attempts by operation
//   - omnicost_api_retries_total: retried calls by operation and failure class
//   - omnicost_fetch_errors_total: failed cost fetches
//   - omnicost_fetch_duration_seconds: fetch duration, retries included
//   - omnicost_records: number of normalized records
//   - omnicost_cost: cost aggregated by service, date and currency
//   - omnicost_build_info: build version information
//
// The Recorder is passed to the retry executor as its Observer. With
// --metrics-file the registry is written once at exit:
//
//	rec := metrics.NewRecorder(provider.ProviderAWS)
//	exec.Observer = rec
//	...
//	rec.ObserveFetch(records, time.Since(start), err)
//	if err := rec.WriteTextfile("/var/lib/node_exporter/omnicost.prom"); err != nil {
//		log.Printf("failed to write metrics: %v", err)
//	}
package metrics
