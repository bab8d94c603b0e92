// Package metrics records matrix run metrics.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder. PrometheusRecorder backs the recorder with client_golang
// collectors registered on a caller-supplied registry, which can be written to
// a node-exporter textfile after a run or served over HTTP by the daemon.
package metrics
