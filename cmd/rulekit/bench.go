package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"aiemployee/rulekit/pkg/cli"
	"aiemployee/rulekit/pkg/config"
	"aiemployee/rulekit/pkg/engine"
	"aiemployee/rulekit/pkg/rules"
	"aiemployee/rulekit/pkg/source"
)

var benchFlags struct {
	record      string
	rules       string
	role        string
	iterations  int
	concurrency int
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measure evaluation latency",
	Long: `Evaluate one record repeatedly and report throughput and latency
percentiles. Rules come from the store, or from --rules.

Examples:
  # 10k evaluations across 4 workers
  rulekit bench --record order.json --rules rules/ --iterations 10000 --concurrency 4`,
	Args: cobra.NoArgs,
	RunE: runBench,
}

func init() {
	rootCmd.AddCommand(benchCmd)

	benchCmd.Flags().StringVarP(&benchFlags.record, "record", "r", "", "record file, or - for stdin (required)")
	benchCmd.Flags().StringVar(&benchFlags.rules, "rules", "", "benchmark against this rule file or directory instead of the store")
	benchCmd.Flags().StringVar(&benchFlags.role, "role", "", "caller role matched against rule exceptions")
	benchCmd.Flags().IntVarP(&benchFlags.iterations, "iterations", "n", 1000, "total evaluations")
	benchCmd.Flags().IntVarP(&benchFlags.concurrency, "concurrency", "c", 1, "concurrent workers")
}

// BenchResult summarizes a benchmark run.
type BenchResult struct {
	Rules       int           `json:"rules" yaml:"rules"`
	Iterations  int           `json:"iterations" yaml:"iterations"`
	Concurrency int           `json:"concurrency" yaml:"concurrency"`
	Blocked     int           `json:"blocked" yaml:"blocked"`
	Duration    time.Duration `json:"duration_ns" yaml:"duration"`
	Throughput  float64       `json:"throughput" yaml:"throughput"`
	Latency     Percentiles   `json:"latency" yaml:"latency"`
}

// Percentiles of a latency sample.
type Percentiles struct {
	Min  time.Duration `json:"min_ns" yaml:"min"`
	Mean time.Duration `json:"mean_ns" yaml:"mean"`
	P50  time.Duration `json:"p50_ns" yaml:"p50"`
	P95  time.Duration `json:"p95_ns" yaml:"p95"`
	P99  time.Duration `json:"p99_ns" yaml:"p99"`
	Max  time.Duration `json:"max_ns" yaml:"max"`
}

// WriteText prints the run summary.
func (r BenchResult) WriteText(w io.Writer) error {
	fmt.Fprintf(w, "Evaluations:  %d over %d rule(s), %d worker(s)\n", r.Iterations, r.Rules, r.Concurrency)
	fmt.Fprintf(w, "Blocked:      %d\n", r.Blocked)
	fmt.Fprintf(w, "Duration:     %s\n", r.Duration.Round(time.Microsecond))
	fmt.Fprintf(w, "Throughput:   %.0f eval/s\n", r.Throughput)
	fmt.Fprintln(w)

	table := &cli.Table{Headers: []string{"MIN", "MEAN", "P50", "P95", "P99", "MAX"}}
	l := r.Latency
	table.AddRow(l.Min.String(), l.Mean.String(), l.P50.String(), l.P95.String(), l.P99.String(), l.Max.String())
	return table.WriteText(w)
}

func runBench(cmd *cobra.Command, args []string) error {
	if benchFlags.record == "" {
		return errors.New("--record is required")
	}
	if benchFlags.iterations <= 0 || benchFlags.concurrency <= 0 {
		return errors.New("--iterations and --concurrency must be positive")
	}
	rec, err := readRecord(cmd, benchFlags.record)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if benchFlags.rules != "" {
		cfg.Store.Backend = config.BackendMemory
	}
	logger, err := newLogger(cfg, true)
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	m, err := openManager(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer m.Close()

	if benchFlags.rules != "" {
		if _, err := m.Sync(ctx, source.NewFileSource(benchFlags.rules, cfg.Rules.Strict, logger)); err != nil {
			return cli.NewCommandError("bench", err)
		}
	}

	caller := engine.WithCaller(rules.Caller{Role: benchFlags.role})
	latencies := make([]time.Duration, benchFlags.iterations)
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		blocked int
		next    = make(chan int)
	)

	start := time.Now()
	for w := 0; w < benchFlags.concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := 0
			for i := range next {
				t0 := time.Now()
				allowed, _ := m.IsAllowed(ctx, rec, caller)
				latencies[i] = time.Since(t0)
				if !allowed {
					local++
				}
			}
			mu.Lock()
			blocked += local
			mu.Unlock()
		}()
	}
	for i := 0; i < benchFlags.iterations; i++ {
		next <- i
	}
	close(next)
	wg.Wait()
	elapsed := time.Since(start)

	return printOutput(cmd, BenchResult{
		Rules:       len(m.Rules()),
		Iterations:  benchFlags.iterations,
		Concurrency: benchFlags.concurrency,
		Blocked:     blocked,
		Duration:    elapsed,
		Throughput:  float64(benchFlags.iterations) / elapsed.Seconds(),
		Latency:     percentiles(latencies),
	})
}

// percentiles sorts samples in place and summarizes them using the
// nearest-rank method.
func percentiles(samples []time.Duration) Percentiles {
	if len(samples) == 0 {
		return Percentiles{}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })

	var sum time.Duration
	for _, s := range samples {
		sum += s
	}
	rank := func(p float64) time.Duration {
		i := int(p*float64(len(samples))+0.5) - 1
		if i < 0 {
			i = 0
		}
		if i >= len(samples) {
			i = len(samples) - 1
		}
		return samples[i]
	}

	return Percentiles{
		Min:  samples[0],
		Mean: sum / time.Duration(len(samples)),
		P50:  rank(0.50),
		P95:  rank(0.95),
		P99:  rank(0.99),
		Max:  samples[len(samples)-1],
	}
}
