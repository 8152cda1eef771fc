package poll

import (
	"encoding/csv"
	"fmt"
	"github.com/ValentinKolb/dPoll/cmd/util"
	"github.com/ValentinKolb/dPoll/lib/poll"
	"github.com/ValentinKolb/dPoll/rpc/common"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

var log = logger.GetLogger("perf")

var (
	perfCmd = &cobra.Command{
		Use:   "perf",
		Short: "Performance testing tool for dPoll servers",
		Long: `Runs create, vote and query benchmarks against a shard and checks afterwards that the tallies of all benchmark polls match the accepted votes.
The benchmark polls stay in the contract since polls can not be deleted.`,
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfConf = perfConfig{}
)

type perfConfig struct {
	threads int
	ops     int
	polls   int
	voters  int
	options int
	skip    []string
}

func init() {
	key := "skip"
	perfCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. create,mixed)"))
	key = "threads"
	perfCmd.Flags().Int(key, 10, util.WrapString("Number of concurrent clients"))
	key = "ops"
	perfCmd.Flags().Int(key, 1000, util.WrapString("Number of operations per benchmark"))
	key = "polls"
	perfCmd.Flags().Int(key, 10, util.WrapString("How many polls the vote and query benchmarks spread over"))
	key = "voters"
	perfCmd.Flags().Int(key, 100, util.WrapString("How many different voter identities to use"))
	key = "options"
	perfCmd.Flags().Int(key, 4, util.WrapString("Options per benchmark poll (at most 10)"))
	key = "csv"
	perfCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	perfConf = perfConfig{
		threads: max(viper.GetInt("threads"), 1),
		ops:     max(viper.GetInt("ops"), 1),
		polls:   max(viper.GetInt("polls"), 1),
		voters:  max(viper.GetInt("voters"), 1),
		options: viper.GetInt("options"),
	}
	if perfConf.options < 1 || perfConf.options > poll.MaxOptions {
		return fmt.Errorf("options must be between 1 and %d", poll.MaxOptions)
	}
	for _, s := range strings.Split(viper.GetString("skip"), ",") {
		if s = strings.TrimSpace(s); s != "" {
			perfConf.skip = append(perfConf.skip, s)
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// Benchmarks
// --------------------------------------------------------------------------

// benchmark is one named workload, op is called ops times spread over all threads
type benchmark struct {
	name string
	op   func(worker, i int) error
}

// benchResult summarizes the latencies of one benchmark
type benchResult struct {
	name     string
	skipped  bool
	count    int64
	errors   int64
	duration time.Duration
	mean     time.Duration
	p50      time.Duration
	p99      time.Duration
}

func (r benchResult) opsPerSec() float64 {
	if r.duration <= 0 {
		return 0
	}
	return float64(r.count) / r.duration.Seconds()
}

// perfRun holds the state shared by the benchmarks of one run
type perfRun struct {
	conf    perfConfig
	client  *poll.Client
	prefix  string
	pollIDs []string
	labels  []string

	// the latest accepted ballot of each (voter, poll) pair
	ballots *xsync.MapOf[poll.BallotKey, string]
}

func newPerfRun(conf perfConfig, client *poll.Client) *perfRun {
	r := &perfRun{
		conf:    conf,
		client:  client,
		prefix:  "perf-" + uuid.NewString()[:8],
		ballots: xsync.NewMapOf[poll.BallotKey, string](),
	}
	for i := 0; i < conf.options; i++ {
		r.labels = append(r.labels, fmt.Sprintf("option-%d", i))
	}
	for i := 0; i < conf.polls; i++ {
		r.pollIDs = append(r.pollIDs, fmt.Sprintf("%s-%d", r.prefix, i))
	}
	return r
}

// voter returns the identity for operation i of a worker. Every voter belongs to exactly
// one worker, so the ballots of a voter are cast in order.
func (r *perfRun) voter(worker, i int) string {
	perWorker := max(r.conf.voters/r.conf.threads, 1)
	return fmt.Sprintf("%s-w%d-v%d", r.prefix, worker, (i/r.conf.threads)%perWorker)
}

func (r *perfRun) vote(worker, i int) error {
	voter := r.voter(worker, i)
	key := poll.BallotKey{Voter: voter, PollID: r.pollIDs[i%len(r.pollIDs)]}
	label := r.labels[(i/len(r.pollIDs))%len(r.labels)]

	if _, err := r.client.As(voter).Vote(key.PollID, label); err != nil {
		return err
	}
	r.ballots.Store(key, label)
	return nil
}

func (r *perfRun) benchmarks() []benchmark {
	return []benchmark{
		{"create", func(_, i int) error {
			_, err := r.client.CreatePoll(fmt.Sprintf("%s-create-%d", r.prefix, i), "perf?", r.labels...)
			return err
		}},
		{"vote", func(w, i int) error {
			return r.vote(w, i)
		}},
		{"query-poll", func(_, i int) error {
			_, err := r.client.Poll(r.pollIDs[i%len(r.pollIDs)])
			return err
		}},
		{"query-ballot", func(w, i int) error {
			_, err := r.client.Ballot(r.voter(w, i), r.pollIDs[i%len(r.pollIDs)])
			return err
		}},
		{"mixed", func(w, i int) error {
			var err error
			switch i % 4 {
			case 0:
				err = r.vote(w, i)
			case 1:
				_, err = r.client.Poll(r.pollIDs[i%len(r.pollIDs)])
			case 2:
				_, err = r.client.Ballot(r.voter(w, i), r.pollIDs[i%len(r.pollIDs)])
			case 3:
				_, err = r.client.AllPolls()
			}
			return err
		}},
	}
}

// run executes op conf.ops times on conf.threads goroutines and records every latency
func (r *perfRun) run(b benchmark) benchResult {
	if slices.Contains(r.conf.skip, b.name) {
		return benchResult{name: b.name, skipped: true}
	}

	timer := gometrics.NewTimer()
	failures := gometrics.NewCounter()

	var g errgroup.Group
	start := time.Now()
	for w := 0; w < r.conf.threads; w++ {
		g.Go(func() error {
			for i := w; i < r.conf.ops; i += r.conf.threads {
				var err error
				timer.Time(func() { err = b.op(w, i) })
				if err != nil {
					failures.Inc(1)
					log.Warningf("(%s) - operation %d failed: %v", b.name, i, err)
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	elapsed := time.Since(start)

	snap := timer.Snapshot()
	return benchResult{
		name:     b.name,
		count:    snap.Count(),
		errors:   failures.Count(),
		duration: elapsed,
		mean:     time.Duration(snap.Mean()),
		p50:      time.Duration(snap.Percentile(0.5)),
		p99:      time.Duration(snap.Percentile(0.99)),
	}
}

// setup creates the polls the vote and query benchmarks use
func (r *perfRun) setup() error {
	var g errgroup.Group
	g.SetLimit(r.conf.threads)
	for _, id := range r.pollIDs {
		g.Go(func() error {
			_, err := r.client.CreatePoll(id, "perf?", r.labels...)
			return err
		})
	}
	return g.Wait()
}

// verify checks that the tallies of the benchmark polls match the accepted ballots
func (r *perfRun) verify() error {
	want := make(map[string]map[string]uint64)
	r.ballots.Range(func(k poll.BallotKey, label string) bool {
		if want[k.PollID] == nil {
			want[k.PollID] = make(map[string]uint64)
		}
		want[k.PollID][label]++
		return true
	})

	for _, id := range r.pollIDs {
		p, err := r.client.Poll(id)
		if err != nil {
			return err
		}
		if p == nil {
			return fmt.Errorf("poll %s is missing", id)
		}
		for _, opt := range p.Options {
			if got, exp := opt.Tally, want[id][opt.Label]; got != exp {
				return fmt.Errorf("poll %s option %s: tally %d, expected %d", id, opt.Label, got, exp)
			}
		}
	}
	return nil
}

func runPerf(cmd *cobra.Command, _ []string) error {
	if err := requireSender(); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	r := newPerfRun(perfConf, pollClient)

	_, _ = color.New(color.Bold).Fprintln(out, "Performance testing tool for dPoll servers")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Configuration:")
	fmt.Fprintln(out, util.GetClientConfig().String())
	fmt.Fprintf(out, "Threads: %d, Ops: %d, Polls: %d, Voters: %d, Options: %d\n", r.conf.threads, r.conf.ops, r.conf.polls, r.conf.voters, r.conf.options)
	fmt.Fprintf(out, "Poll prefix: %s\n\n", r.prefix)

	if err := r.setup(); err != nil {
		return fmt.Errorf("creating benchmark polls: %w", err)
	}

	fmt.Fprintln(out, "starting tests...")
	var results []benchResult
	for _, b := range r.benchmarks() {
		res := r.run(b)
		printResult(out, res)
		results = append(results, res)
	}

	fmt.Fprintln(out)
	if err := r.verify(); err != nil {
		_, _ = color.New(color.FgRed).Fprintf(out, "tally check failed: %v\n", err)
		return err
	}
	_, _ = color.New(color.FgGreen).Fprintln(out, "tally check passed")

	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Fprintf(out, "\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, util.GetClientConfig()); err != nil {
			return fmt.Errorf("failed to export results to CSV: %w", err)
		}
		fmt.Fprintln(out, "Export complete")
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// printResult prints the result of a benchmark in a formatted way
func printResult(w io.Writer, r benchResult) {
	if r.skipped {
		_, _ = color.New(color.Faint).Fprintf(w, "%-15sskipped\n", r.name)
		return
	}

	errs := fmt.Sprintf("%d errors", r.errors)
	if r.errors > 0 {
		errs = color.RedString(errs)
	}
	fmt.Fprintf(w, "%-15s%8.0f ops/sec\tmean %-12s p50 %-12s p99 %-12s %s\n",
		r.name, r.opsPerSec(), r.mean, r.p50, r.p99, errs)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results []benchResult, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	header := []string{
		"Test", "Skipped", "Ops", "Errors", "OpsPerSec", "MeanNs", "P50Ns", "P99Ns",
		"Endpoints", "TimeoutSec", "RetryCount", "ConnectionsPerEndpoint",
		"ShardID", "Serializer", "Threads", "Polls", "Voters", "Options",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, r := range results {
		row := []string{
			r.name,
			strconv.FormatBool(r.skipped),
			strconv.FormatInt(r.count, 10),
			strconv.FormatInt(r.errors, 10),
			fmt.Sprintf("%.0f", r.opsPerSec()),
			strconv.FormatInt(int64(r.mean), 10),
			strconv.FormatInt(int64(r.p50), 10),
			strconv.FormatInt(int64(r.p99), 10),
			strings.Join(config.Endpoints, ";"),
			strconv.Itoa(config.TimeoutSecond),
			strconv.Itoa(config.RetryCount),
			strconv.Itoa(config.ConnectionsPerEndpoint),
			strconv.FormatUint(util.GetShardID(), 10),
			viper.GetString("serializer"),
			strconv.Itoa(perfConf.threads),
			strconv.Itoa(perfConf.polls),
			strconv.Itoa(perfConf.voters),
			strconv.Itoa(perfConf.options),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %w", r.name, err)
		}
	}

	writer.Flush()
	return writer.Error()
}
