package perf

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dRPC/cmd/demo"
	cmdUtil "github.com/ValentinKolb/dRPC/cmd/util"
	"github.com/ValentinKolb/dRPC/rpc/client"
	"github.com/ValentinKolb/dRPC/rpc/common"
	"github.com/ValentinKolb/dRPC/rpc/peer"
	metrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"log"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"
)

var (
	PerfCmd = &cobra.Command{
		Use:   "perf",
		Short: "Performance testing tool for dRPC hosts",
		Long: `Run benchmarks against a host started with 'drpc serve'.
All benchmarks share one connection, concurrent calls are multiplexed over it.`,
		PreRunE: processPerfConfig,
		RunE:    run,
	}
	perfLargeValueSizeKB = 100
	perfNumThreads       = 10
	perfSkip             = make([]string, 0)
	perfRegistry         = metrics.NewRegistry()
)

// benchmark is one named test run against the remote calculator
type benchmark struct {
	name string
	op   func(ctx context.Context, remote *demo.CalculatorRemote, large []byte) error
}

var benchmarks = []benchmark{
	{"call", func(ctx context.Context, r *demo.CalculatorRemote, _ []byte) error {
		_, err := r.Add(ctx, []float64{2, 3})
		return err
	}},
	{"call-large", func(ctx context.Context, r *demo.CalculatorRemote, large []byte) error {
		_, err := r.Echo(ctx, large)
		return err
	}},
	{"call-error", func(ctx context.Context, r *demo.CalculatorRemote, _ []byte) error {
		_, err := r.Div(ctx, [2]float64{1, 0})
		var remoteErr *common.RemoteError
		if errors.As(err, &remoteErr) {
			return nil
		}
		return fmt.Errorf("expected remote error, got %v", err)
	}},
	{"notify", func(ctx context.Context, r *demo.CalculatorRemote, _ []byte) error {
		return r.Ping(ctx)
	}},
}

func init() {
	cmdUtil.SetupPeerFlags(PerfCmd, "localhost:8080")

	key := "skip"
	PerfCmd.Flags().String(key, "", cmdUtil.WrapString("Benchmarks to skip (comma separated - e.g. call,notify)"))
	key = "threads"
	PerfCmd.Flags().Int(key, 10, cmdUtil.WrapString("Number of goroutines per CPU calling concurrently"))
	key = "large-value-size"
	PerfCmd.Flags().Int(key, 100, cmdUtil.WrapString("How large the value for the call-large test should be (in KB)"))
	key = "csv"
	PerfCmd.Flags().String(key, "", cmdUtil.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfNumThreads = viper.GetInt("threads")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

func run(_ *cobra.Command, _ []string) error {
	config := cmdUtil.GetPeerConfig()
	connector, err := cmdUtil.GetClientConnector()
	if err != nil {
		return err
	}

	fmt.Println("Performance testing tool for dRPC hosts")
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(config.String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	p, err := peer.Dial(context.Background(), connector, config, nil)
	if err != nil {
		return err
	}
	defer p.Close()

	remote := &demo.CalculatorRemote{}
	if err := client.Bind(p.Client(), remote); err != nil {
		return err
	}

	fmt.Println("starting tests...")

	large := make([]byte, perfLargeValueSizeKB*1024)
	results := make(map[string]testing.BenchmarkResult)

	for _, bm := range benchmarks {
		if slices.Contains(perfSkip, bm.name) {
			results[bm.name] = testing.BenchmarkResult{}
			printResult(bm.name, testing.BenchmarkResult{}, nil)
			continue
		}

		timer := metrics.GetOrRegisterTimer(bm.name+".latency", perfRegistry)
		failures := metrics.GetOrRegisterCounter(bm.name+".errors", perfRegistry)

		result := testing.Benchmark(func(b *testing.B) {
			b.SetParallelism(perfNumThreads)
			b.ResetTimer()

			b.RunParallel(func(pb *testing.PB) {
				for pb.Next() {
					ctx, cancel := callContext(config.TimeoutSecond)
					start := time.Now()
					err := bm.op(ctx, remote, large)
					timer.UpdateSince(start)
					cancel()
					if err != nil {
						failures.Inc(1)
						log.Printf("(%s) - %v\n", bm.name, err)
					}
				}
			})
		})

		results[bm.name] = result
		printResult(bm.name, result, timer)
		if n := failures.Count(); n > 0 {
			fmt.Printf("%-20s%d errors\n", "", n)
		}

		// a closed connection fails every following test
		if err := p.Err(); err != nil {
			return fmt.Errorf("connection lost during %s: %w", bm.name, err)
		}
	}

	if csvPath := viper.GetString("csv"); csvPath != "" {
		if err := writeResultsToCSV(csvPath, results, config); err != nil {
			return err
		}
		fmt.Printf("results written to %s\n", csvPath)
	}

	return nil
}

func callContext(timeoutSecond int) (context.Context, context.CancelFunc) {
	if timeoutSecond <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), time.Duration(timeoutSecond)*time.Second)
}

// opsPerSec converts a benchmark result, the second value is false for skipped tests
func opsPerSec(result testing.BenchmarkResult) (float64, float64, bool) {
	if result.NsPerOp() == 0 {
		return 0, 0, false
	}
	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	return nsPerOp, 1.0 / (nsPerOp / 1e9), true
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult, timer metrics.Timer) {
	nsPerOp, ops, ok := opsPerSec(result)
	if !ok {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec", test, nsPerOp, time.Duration(nsPerOp), ops)
	if timer != nil && timer.Count() > 0 {
		ps := timer.Percentiles([]float64{0.5, 0.99})
		fmt.Printf("\tp50 %s\tp99 %s", time.Duration(ps[0]), time.Duration(ps[1]))
	}
	fmt.Println()
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult, config common.PeerConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "P50", "P99", "Errors", "Skipped",
		"Endpoint", "Transport", "Serializer", "EnvelopeCodec", "Signed", "Encrypted",
		"Threads", "LargeValueSizeKB",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	for _, bm := range benchmarks {
		result, ok := results[bm.name]
		if !ok {
			continue
		}
		nsPerOp, ops, ran := opsPerSec(result)

		var p50, p99 float64
		timer := metrics.GetOrRegisterTimer(bm.name+".latency", perfRegistry)
		if timer.Count() > 0 {
			ps := timer.Percentiles([]float64{0.5, 0.99})
			p50, p99 = ps[0], ps[1]
		}

		row := []string{
			bm.name,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.2f", ops),
			time.Duration(p50).String(),
			time.Duration(p99).String(),
			strconv.FormatInt(metrics.GetOrRegisterCounter(bm.name+".errors", perfRegistry).Count(), 10),
			strconv.FormatBool(!ran),
			config.Transport.Endpoint,
			viper.GetString("transport"),
			config.Serializer,
			config.EnvelopeCodec,
			strconv.FormatBool(config.SignSecret != ""),
			strconv.FormatBool(config.EncryptSecret != ""),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeValueSizeKB),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %v", err)
		}
	}

	return nil
}
