// Package cmd implements the command-line interface of dRPC. It provides a
// demo host and tools to call and benchmark it.
//
// The package is organized into several subpackages:
//
//   - serve: Starts hosts serving the demo calculator, optionally with a metrics endpoint
//   - call: Sends a single call or notify with a JSON argument
//   - perf: Benchmarks a running host
//   - demo: The calculator service and its remote shape
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See drpc -help for a list of all commands.
package cmd
