package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"teammetrics/internal/collector"
	"teammetrics/internal/config"
	"teammetrics/internal/daterange"
	"teammetrics/internal/events"
	"teammetrics/internal/logging"
	"teammetrics/internal/snapshot"
)

// Exit codes of the collection entrypoint.
const (
	exitOK        = 0
	exitConfig    = 1
	exitUpstream  = 2
	exitCancelled = 130
)

// errConfig marks failures that are the operator's to fix, not upstream's.
var errConfig = errors.New("configuration")

var (
	// Version, Commit, and BuildDate are set at build time via ldflags.
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"

	verbose    bool
	quiet      bool
	configPath string
	logFile    string
	dateRange  string
	envName    string
)

var rootCmd = &cobra.Command{
	Use:   "teammetrics",
	Short: "Collects engineering metrics from source control and the issue tracker",
	Long: `Collects pull-request, review, commit and tracker activity for the
configured teams, computes flow and DORA metrics, and seals the result
into a range-keyed snapshot.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func run(ctx context.Context) error {
	logging.Init(verbose, quiet, logFile)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("%w: %v", errConfig, err)
	}

	log.Info().
		Str("version", Version).
		Str("commit", Commit).
		Str("buildDate", BuildDate).
		Str("range", dateRange).
		Str("env", envName).
		Msg("teammetrics starting")

	c, err := collector.New(cfg, envName, events.NewBus())
	if err != nil {
		return fmt.Errorf("%w: %v", errConfig, err)
	}

	start := time.Now()
	snap, err := c.Refresh(ctx, dateRange)
	if err != nil {
		return err
	}

	printSummary(snap, time.Since(start))
	return nil
}

func printSummary(snap *snapshot.Snapshot, elapsed time.Duration) {
	var prs, issues, releases int64
	degraded := 0
	for _, team := range snap.Teams {
		prs += int64(team.GitHub.PRs.PRCount)
		releases += int64(len(team.Releases))
		for _, m := range team.Jira {
			issues += int64(m.Throughput)
		}
		for _, p := range team.Persons {
			if p.Degraded {
				degraded++
			}
		}
	}

	fmt.Printf("Collected %s pull requests, %s completed issues and %s releases across %d teams in %s.\n",
		humanize.Comma(prs), humanize.Comma(issues), humanize.Comma(releases),
		len(snap.Teams), elapsed.Round(time.Second))
	if logging.Interactive() {
		for _, s := range snap.Summary {
			fmt.Printf("  %-20s score %5.1f  dora %s\n", s.Team, s.Score, s.DORAOverall)
		}
	}
	if degraded > 0 {
		fmt.Printf("Partial: %d person queries fell back to a shorter window.\n", degraded)
	}
}

// Execute runs the root command and maps failures onto the documented exit
// codes: 1 configuration, 2 upstream, 130 cancelled.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	switch {
	case ctx.Err() != nil || errors.Is(err, context.Canceled):
		return exitCancelled
	case errors.Is(err, daterange.ErrInvalidRange), errors.Is(err, errConfig):
		return exitConfig
	default:
		return exitUpstream
	}
}

func defaultEnv() string {
	if env := os.Getenv("TEAM_METRICS_ENV"); env != "" {
		return env
	}
	return "prod"
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "only log warnings and errors")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "log file path override")
	rootCmd.Flags().StringVar(&dateRange, "date-range", "90d", "reporting window (90d, 2025, Q1-2025, YYYY-MM-DD:YYYY-MM-DD)")
	rootCmd.Flags().StringVar(&envName, "env", defaultEnv(), "tracker environment to collect from")
}
