package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Tchoumis/Projet-scripting-securise-v1/internal/adapters/input"
	"github.com/Tchoumis/Projet-scripting-securise-v1/internal/adapters/output"
	"github.com/Tchoumis/Projet-scripting-securise-v1/internal/adapters/storage"
	"github.com/Tchoumis/Projet-scripting-securise-v1/internal/app"
	"github.com/Tchoumis/Projet-scripting-securise-v1/internal/report"
)

var (
	cfgFile       string
	logFile       string
	logLevel      string
	fromBeginning bool
	pollFile      bool
	reportRecent  int
	reportWidth   int

	cfg app.Config

	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "authwatch",
	Short: "Host authentication log monitoring agent",
	Long: `authwatch watches a host's authentication log, stores every
well-formed line once, raises alerts on repeated failed logins and on
fail2ban ban-list changes, rotates the live log into gzip archives and
keeps dated backups of sensitive configuration files.

Configuration comes from authwatch.yaml (., /etc/authwatch or --config)
and AUTHWATCH_* environment variables, e.g. AUTHWATCH_LOG_PATH.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the agent until interrupted",
	Long: `Run ingestion, detection, ban-list polling and maintenance on their
configured intervals. Ingestion also runs whenever the live log is written.

Examples:
  authwatch run
  authwatch run --config /etc/authwatch/authwatch.yaml`,
	RunE: runAgent,
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Parse the live log once and store new events",
	RunE:  runIngest,
}

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Scan for failed logins once and dispatch alerts",
	RunE:  runDetect,
}

var rotateCmd = &cobra.Command{
	Use:   "rotate",
	Short: "Ingest, rotate the live log if too large, back up files",
	RunE:  runRotate,
}

var bansCmd = &cobra.Command{
	Use:   "bans",
	Short: "Poll the fail2ban ban list once",
	RunE:  runBans,
}

var followCmd = &cobra.Command{
	Use:   "follow",
	Short: "Tail the live log and store events as they are written",
	RunE:  runFollow,
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print a summary of stored events",
	RunE:  runReport,
}

var versionCmd = &cobra.Command{
	Use:               "version",
	Short:             "Print version information",
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("authwatch %s\n", Version)
		fmt.Printf("Commit:  %s\n", Commit)
		fmt.Printf("Built:   %s\n", BuildTime)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./authwatch.yaml)")
	rootCmd.PersistentFlags().StringVarP(&logFile, "log", "l", "", "live log file (overrides log.path)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides logging.level)")

	followCmd.Flags().BoolVar(&fromBeginning, "from-beginning", false, "replay the existing file before following")
	followCmd.Flags().BoolVar(&pollFile, "poll", false, "poll the file instead of using inotify")
	reportCmd.Flags().IntVar(&reportRecent, "recent", 20, "number of recent events to show")
	reportCmd.Flags().IntVar(&reportWidth, "width", 100, "report width in columns")

	rootCmd.AddCommand(runCmd, ingestCmd, detectCmd, rotateCmd, bansCmd, followCmd, reportCmd, versionCmd)
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	v, err := app.NewViper(cfgFile)
	if err != nil {
		return err
	}
	bindFlag(v, "log.path", cmd, "log")
	bindFlag(v, "logging.level", cmd, "log-level")

	cfg, err = app.Load(v)
	if err != nil {
		return err
	}
	setupLogging(cfg.LogLevel, cfg.LogFormat)
	return nil
}

func bindFlag(v *viper.Viper, key string, cmd *cobra.Command, name string) {
	if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
		v.Set(key, f.Value.String())
	}
}

func setupLogging(level, format string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if format == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "15:04:05",
		})
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runAgent(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	c, err := build(cfg, buildOptions{withBans: true})
	if err != nil {
		return err
	}
	defer c.Close()

	log.Info().
		Str("log", cfg.LogPath).
		Dur("poll", cfg.PollInterval).
		Dur("rotate", cfg.RotateInterval).
		Int("threshold", cfg.DetectThreshold).
		Msg("authwatch started")

	sched := app.NewScheduler(app.SystemClock{}, c.observer, app.SchedulerConfig{})

	var trigger <-chan struct{}
	watcher, err := input.NewWriteWatcher(cfg.LogPath, time.Second)
	if err != nil {
		log.Warn().Err(err).Msg("Live log watcher unavailable, relying on polling")
	} else {
		defer watcher.Close()
		trigger = watcher.C()
		sched.AddService(watcher)
	}

	sched.Add(app.Unit{
		Name:     "ingest",
		Interval: cfg.PollInterval,
		Trigger:  trigger,
		Action: func(ctx context.Context) error {
			_, err := c.pipeline.Ingest(ctx)
			return err
		},
	})
	c.health.Expect("ingest", cfg.PollInterval)

	sched.Add(app.Unit{
		Name:     "monitor",
		Interval: cfg.PollInterval,
		Action: func(ctx context.Context) error {
			_, detectErr := c.pipeline.Detect(ctx)
			if c.poller == nil {
				return detectErr
			}
			_, pollErr := c.poller.Poll(ctx)
			return errors.Join(detectErr, pollErr)
		},
	})
	c.health.Expect("monitor", cfg.PollInterval)

	sched.Add(app.Unit{
		Name:     "maintenance",
		Interval: cfg.RotateInterval,
		Action:   c.pipeline.Maintain,
	})
	c.health.Expect("maintenance", cfg.RotateInterval)

	if cfg.MetricsEnabled {
		mc := output.DefaultMetricsConfig()
		mc.Addr = cfg.MetricsAddr
		if err := c.metrics.StartServer(mc, map[string]http.Handler{"/ready": c.health}); err != nil {
			log.Warn().Err(err).Msg("Failed to start metrics server")
		} else {
			defer func() {
				stopCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
				defer stop()
				c.metrics.StopServer(stopCtx)
			}()
		}
	}

	err = sched.Serve(ctx)
	log.Info().Msg("Shutting down...")
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	c, err := build(cfg, buildOptions{})
	if err != nil {
		return err
	}
	defer c.Close()

	s, err := c.pipeline.Ingest(ctx)
	fmt.Printf("parsed=%d inserted=%d duplicates=%d parse_errors=%d filtered=%d\n",
		s.Parsed, s.Inserted, s.Duplicates, s.ParseErrors, s.Filtered)
	return err
}

func runDetect(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	c, err := build(cfg, buildOptions{stdoutAlerts: true})
	if err != nil {
		return err
	}
	defer c.Close()

	alerts, err := c.pipeline.Detect(ctx)
	if len(alerts) == 0 && err == nil {
		fmt.Println("No source reached the failed login threshold.")
	}
	return err
}

func runRotate(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	c, err := build(cfg, buildOptions{})
	if err != nil {
		return err
	}
	defer c.Close()

	return c.pipeline.Maintain(ctx)
}

func runBans(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	c, err := build(cfg, buildOptions{withBans: true, stdoutAlerts: true})
	if err != nil {
		return err
	}
	defer c.Close()

	if c.poller == nil {
		return fmt.Errorf("ban polling disabled (bans.enabled=false)")
	}
	change, err := c.poller.Poll(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("banned: %s (changed: %t)\n", change.Current, change.Changed)
	return nil
}

func runFollow(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	c, err := build(cfg, buildOptions{})
	if err != nil {
		return err
	}
	defer c.Close()

	follower := input.NewFollower(cfg.LogPath, c.parser, 0)
	follower.SetFromBeginning(fromBeginning)
	follower.SetPoll(pollFile)
	defer follower.Stop()

	events, errs := follower.Start(ctx)
	if err := c.pipeline.Follow(ctx, events, errs); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	c, err := build(cfg, buildOptions{})
	if err != nil {
		return err
	}
	defer c.Close()

	opts := report.Options{
		Recent:    reportRecent,
		Threshold: cfg.DetectThreshold,
		Matcher:   c.detector,
	}
	if cfg.Bans.Enabled {
		if bans, err := storage.OpenBoltBanStateReadOnly(cfg.Bans.StatePath); err != nil {
			log.Warn().Err(err).Msg("Ban state unavailable, omitted from report")
		} else {
			defer bans.Close()
			opts.Bans = bans
		}
	}

	s, err := report.Build(ctx, c.store, opts)
	if err != nil {
		return err
	}
	fmt.Println(report.Render(s, reportWidth))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
