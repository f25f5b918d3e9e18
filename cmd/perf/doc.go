// Package perf implements the perf command, a load generator measuring
// throughput and latency percentiles of calls against a running host.
package perf
