package db

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/dotKV/cmd/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for dotKV databases",
		Long:    "Runs a set of parallel benchmarks against the selected backend. All keys are written below a dedicated prefix and removed afterwards.",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix        = "__perf"
	perfLargeValueSizeKB = 100
	perfNumThreads       = 10
	perfKeySpread        = 100
	perfSkip             = make([]string, 0)
)

// perfTest is one named benchmark; prepare runs before the timer starts
type perfTest struct {
	name    string
	prepare func(ctx context.Context, key string) error
	op      func(ctx context.Context, key string) error
}

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. set,get)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How large the value for the set-large test should be (in KB)"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfKeySpread = max(viper.GetInt("keys"), 1)
	perfNumThreads = max(viper.GetInt("threads"), 1)
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

func runPerf(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	fmt.Println("Performance testing tool for dotKV databases")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Printf("Backend: %s\n", viper.GetString("backend"))
	if viper.GetString("backend") == "rpc" {
		fmt.Println(util.GetClientConfig().String())
	}
	fmt.Printf("Database: %s\n", db.Name())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	fmt.Println("starting tests...")

	largeValue := strings.Repeat("x", perfLargeValueSizeKB*1024)
	tests := []perfTest{
		{
			name: "set",
			op: func(ctx context.Context, key string) error {
				_, err := db.Set(ctx, key, "test")
				return err
			},
		},
		{
			name: "set-nested",
			op: func(ctx context.Context, key string) error {
				_, err := db.Set(ctx, key+".profile.name", "test")
				return err
			},
		},
		{
			name: "set-large",
			op: func(ctx context.Context, key string) error {
				_, err := db.Set(ctx, key, largeValue)
				return err
			},
		},
		{
			name: "get",
			prepare: func(ctx context.Context, key string) error {
				_, err := db.Set(ctx, key, "test")
				return err
			},
			op: func(_ context.Context, key string) error {
				_, err := db.Get(key)
				return err
			},
		},
		{
			name: "get-from-database",
			prepare: func(ctx context.Context, key string) error {
				_, err := db.Set(ctx, key, "test")
				return err
			},
			op: func(ctx context.Context, key string) error {
				_, err := db.GetFromDatabase(ctx, key)
				return err
			},
		},
		{
			name: "add",
			op: func(ctx context.Context, key string) error {
				_, err := db.Add(ctx, key, 1)
				return err
			},
		},
		{
			name: "push",
			op: func(ctx context.Context, key string) error {
				_, err := db.Push(ctx, key, "test")
				return err
			},
		},
		{
			name: "delete",
			op: func(ctx context.Context, key string) error {
				_, err := db.Delete(ctx, key)
				return err
			},
		},
	}

	// Create results map
	results := make(map[string]testing.BenchmarkResult)

	for _, test := range tests {
		result := testing.Benchmark(func(b *testing.B) {
			if shouldSkip(test.name) {
				return
			}
			benchmark(ctx, b, test)
		})
		results[test.name] = result
		printResult(test.name, result)
	}

	// Write results to CSV if path is provided
	if csvPath := viper.GetString("csv"); csvPath != "" {
		if err := writeResultsToCSV(csvPath, results); err != nil {
			return err
		}
		fmt.Printf("\nResults written to %s\n", csvPath)
	}

	return nil
}

// benchmark runs one test in parallel over the key spread and deletes the keys afterwards
func benchmark(ctx context.Context, b *testing.B, test perfTest) {
	// prepare keys
	getKey, iter := getKeys(test.name)

	// cleanup
	b.Cleanup(func() {
		iter(func(k string) {
			if _, err := db.Delete(ctx, k); err != nil {
				log.Printf("(%s) - error deleting key: %v\n", test.name, err)
			}
		})
	})

	if test.prepare != nil {
		iter(func(k string) {
			if err := test.prepare(ctx, k); err != nil {
				log.Printf("(%s) - error preparing key: %v\n", test.name, err)
			}
		})
	}

	b.SetParallelism(perfNumThreads)

	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			if err := test.op(ctx, getKey(counter)); err != nil {
				log.Printf("(%s) - error: %v\n", test.name, err)
			}
			counter++
		}
	})
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	return slices.Contains(perfSkip, test)
}

// creates an array of test keys and functions to work with them
func getKeys(prefix string) (func(int) string, func(func(string))) {
	keys := make([]string, perfKeySpread)
	for i := 0; i < perfKeySpread; i++ {
		keys[i] = fmt.Sprintf("%s-%s-%d", perfKeyPrefix, prefix, i)
	}

	// Function to get a key by index (with wraparound)
	getKey := func(i int) string {
		return keys[i%perfKeySpread]
	}

	// Function to iterate over all keys and apply a function to each
	iterateKeys := func(fn func(string)) {
		for _, key := range keys {
			fn(key)
		}
	}

	return getKey, iterateKeys
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped",
		"Backend", "Endpoints", "Serializer", "Database",
		"Threads", "LargeValueSizeKB", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	config := util.GetClientConfig()

	// Write test results
	for test, result := range results {
		var nsPerOp float64
		var opsPerSec float64
		skipped := "true"

		if result.NsPerOp() != 0 {
			skipped = "false"
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			skipped,
			viper.GetString("backend"),
			strings.Join(config.Endpoints, ";"),
			viper.GetString("serializer"),
			db.Name(),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeValueSizeKB),
			strconv.Itoa(perfKeySpread),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
