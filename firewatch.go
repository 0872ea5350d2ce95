package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"
	"go.uber.org/multierr"

	"firewatch/config"
	"firewatch/detection"
	"firewatch/events"
	"firewatch/internal/logging"
	"firewatch/overlay"
	"firewatch/pipeline"
	"firewatch/pkg/ytdlp"
	"firewatch/relay"
	"firewatch/source"
	"firewatch/tracking"
)

const longHelp = `Watch a video source for fire and raise an alarm.

Frames are segmented with brightness-adaptive HSV thresholds and a candidate
must stay put and keep flickering for a number of frames before the alarm
fires. Alarms are logged to CSV (and optionally SQLite) and forwarded to a
buzzer relay over HTTP.`

var exampleUsage = strings.TrimSpace(`
  firewatch --source temp_video.mp4
  firewatch --source 0 --relay-url http://192.168.137.86:5000 --stop-on-alarm
  firewatch --source https://youtu.be/<id> --display=false --events-db fire.db
  firewatch events --db fire.db --limit 5
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "firewatch:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := config.DefaultConfig()
	var (
		cfgPath string
		policy  string
	)

	root := &cobra.Command{
		Use:          "firewatch",
		Short:        "Detect fire in a video stream and sound a remote alarm",
		Long:         longHelp,
		Example:      exampleUsage,
		Version:      fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = config.DefaultConfigPath()
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if changed["alarm-policy"] {
				p, err := tracking.ParseAlarmPolicy(policy)
				if err != nil {
					return err
				}
				cfg.Tracker.Policy = p
			}

			base := cfg
			resolved, err := config.Resolve(base, cfgFile, changed)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			if resolved.Source == "" {
				src, err := promptSource(cmd.InOrStdin(), cmd.OutOrStdout())
				if err != nil {
					return err
				}
				resolved.Source = src
			}

			log, err := logging.New(resolved.LogLevel)
			if err != nil {
				return err
			}
			log.Info().Interface("config", resolved).Msg("configuration")

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var watcher *config.Watcher
			if resolved.WatchConfig && cfgFile != "" {
				watcher = config.NewWatcher(cfgFile, func() (config.Config, error) {
					return config.Resolve(base, cfgFile, changed)
				}, log)
			}
			return run(ctx, resolved, watcher, log)
		},
	}

	f := root.Flags()
	f.StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.firewatch/config.toml)")
	f.StringVar(&cfg.Source, "source", "", "video file, camera index, stream URL or YouTube URL")
	f.IntVar(&cfg.TargetWidth, "target-width", cfg.TargetWidth, "resize frames to this width (0 keeps native size)")
	f.BoolVar(&cfg.Live, "live", cfg.Live, "drop stale frames even for file sources")
	f.BoolVar(&cfg.Display, "display", cfg.Display, "show the annotated video window")
	f.BoolVar(&cfg.StopOnAlarm, "stop-on-alarm", cfg.StopOnAlarm, "stop processing after the first alarm and wait for 'q'")
	f.StringVar(&cfg.RelayURL, "relay-url", cfg.RelayURL, "buzzer relay base URL, e.g. http://192.168.137.86:5000")
	f.DurationVar(&cfg.RelayTimeout, "relay-timeout", cfg.RelayTimeout, "relay HTTP timeout")
	f.StringVar(&cfg.EventsCSV, "events-csv", cfg.EventsCSV, "CSV event log path (empty disables)")
	f.StringVar(&cfg.EventsDB, "events-db", cfg.EventsDB, "SQLite event store path (empty disables)")
	f.StringVar(&policy, "alarm-policy", cfg.Tracker.Policy.String(), "alarm policy: continuous or latching")
	f.Float64Var(&cfg.Segmenter.MinArea, "min-area", cfg.Segmenter.MinArea, "smallest fire region in px²")
	f.IntVar(&cfg.Tracker.AlarmDelay, "alarm-delay", cfg.Tracker.AlarmDelay, "qualifying frames before the alarm fires")
	f.StringVar(&cfg.Segmenter.DebugMaskPath, "debug-mask", cfg.Segmenter.DebugMaskPath, "write each frame's binary mask to this image path")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	f.BoolVar(&cfg.WatchConfig, "watch-config", cfg.WatchConfig, "reload tuning when the config file changes")

	root.AddCommand(newEventsCommand())
	return root
}

func promptSource(in io.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, "Enter URL or 'temp_video.mp4': ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read source: %w", err)
	}
	src := strings.TrimSpace(line)
	if src == "" {
		return "", errors.New("no video source given")
	}
	return src, nil
}

func run(ctx context.Context, cfg config.Config, watcher *config.Watcher, log zerolog.Logger) (err error) {
	seg, err := detection.NewSegmenter(cfg.Segmenter, log)
	if err != nil {
		return err
	}
	tracker, err := tracking.NewPersistenceTracker(cfg.Tracker, tracking.WithLogger(log))
	if err != nil {
		return err
	}

	sink, err := openSinks(cfg, log)
	if err != nil {
		return err
	}
	if sink != nil {
		defer func() { err = multierr.Append(err, sink.Close()) }()
	}

	capture, err := source.Open(ctx, cfg.Source, source.Options{
		TargetWidth: cfg.TargetWidth,
		Resolver:    ytdlp.NewResolver(log),
		Logger:      log,
	})
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, capture.Close()) }()

	opts := []pipeline.Option{
		pipeline.WithLogger(log),
		pipeline.WithStopOnAlarm(cfg.StopOnAlarm),
	}
	if sink != nil {
		opts = append(opts, pipeline.WithSink(sink))
	}
	if cfg.RelayURL != "" {
		ctrl := relay.NewHTTPController(cfg.RelayURL, relay.WithTimeout(cfg.RelayTimeout), relay.WithLogger(log))
		ctrl.Start()
		defer ctrl.Stop()
		opts = append(opts, pipeline.WithRelay(ctrl))
		log.Info().Str("endpoint", ctrl.Endpoint()).Msg("relay configured")
	}
	if cfg.Display {
		win := overlay.NewWindow(overlay.DefaultWindowTitle)
		defer win.Close()
		opts = append(opts, pipeline.WithRenderer(win))
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if watcher != nil {
		opts = append(opts, pipeline.WithTuning(watcher.Updates()))
		go func() {
			if werr := watcher.Run(runCtx); werr != nil {
				log.Warn().Err(werr).Msg("config watcher stopped")
			}
		}()
	}

	grabber := source.NewGrabber(capture, cfg.Live || capture.Kind().Live(), log)
	grabber.Start(runCtx)
	defer grabber.Drain()
	defer cancel()

	sum, err := pipeline.New(seg, tracker, opts...).Run(runCtx, grabber.Frames())
	log.Info().
		Int("frames", sum.Frames).
		Int("events_raised", sum.EventsRaised).
		Int("events_recorded", sum.EventsRecorded).
		Bool("alarm_fired", sum.AlarmFired).
		Int("frames_dropped", grabber.Dropped()).
		Msg("program finished")
	if err != nil {
		return err
	}
	return grabber.Err()
}

func openSinks(cfg config.Config, log zerolog.Logger) (events.Sink, error) {
	var sinks events.Multi
	if cfg.EventsCSV != "" {
		csvLog, err := events.NewCSVLog(cfg.EventsCSV)
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", csvLog.Path()).Msg("event log")
		sinks = append(sinks, csvLog)
	}
	if cfg.EventsDB != "" {
		store, err := events.NewSQLiteStore(cfg.EventsDB, cfg.Source)
		if err != nil {
			return nil, multierr.Append(err, sinks.Close())
		}
		log.Info().Str("path", cfg.EventsDB).Msg("event store")
		sinks = append(sinks, store)
	}
	if len(sinks) == 0 {
		return nil, nil
	}
	return sinks, nil
}
