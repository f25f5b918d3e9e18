// Package demo contains the Calculator service used by the serve, call and
// perf commands.
package demo
