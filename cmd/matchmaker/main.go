// Copyright (c) 2026 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// matchmaker runs the skill matchmaking engine with its operational servers.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/AccelByte/extend-skill-matchmaker/pkg/config"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/constants"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/engine"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/envelope"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/health"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/journal"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/matchmaker"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/metrics"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/models"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/notify"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/ratingstore"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/server"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/telemetry"
)

const serviceName = "skill-matchmaker"

func main() {
	if err := run(); err != nil {
		logrus.Errorf("%+v", err)
		os.Exit(1)
	}
}

func run() error {
	var envFile, modesPath, logLevel string
	var autoAccept bool

	flagSet := pflag.NewFlagSet(serviceName, pflag.ContinueOnError)
	flagSet.StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment is parsed")
	flagSet.StringVar(&modesPath, "modes", "", "mode rules yaml (overrides MODE_RULES_PATH)")
	flagSet.StringVar(&logLevel, "log-level", "", "logrus level (overrides LOG_LEVEL)")
	flagSet.BoolVar(&autoAccept, "auto-accept", false, "accept every ready check, for local runs")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return eris.Wrapf(err, "failed to load %s", envFile)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if modesPath != "" {
		cfg.ModeRulesPath = modesPath
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if flagSet.Changed("auto-accept") {
		cfg.AutoAccept = autoAccept
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return eris.Wrapf(err, "invalid log level %q", cfg.LogLevel)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Options{
		ServiceName: serviceName,
		ZipkinURL:   cfg.ZipkinURL,
		SampleRate:  cfg.TraceSampleRate,
	})
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logrus.Warnf("failed to flush traces: %v", err)
		}
	}()

	scope := envelope.NewRootScope(ctx, serviceName, "")
	defer scope.Finish()

	rules, err := models.LoadModeRules(cfg.ModeRulesPath)
	if err != nil {
		return err
	}
	scope.Log.Infof("loaded %d modes from %s", len(rules.All()), cfg.ModeRulesPath)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mmMetrics := metrics.NewMetrics(registry)
	monitor := health.NewMonitor(mmMetrics,
		constants.DependencyRatingStore,
		constants.DependencyNotifier,
		constants.DependencySessionService,
		constants.DependencyJournal)

	ratings, closeRatings, err := ratingStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRatings()

	responder := &lateResponder{}
	deps := engine.Dependencies{
		Ratings:  ratingstore.NewCached(ratings, cfg.RatingCacheTTL()),
		Metrics:  mmMetrics,
		Degraded: monitor,
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		if err = redisClient.Ping(ctx).Err(); err != nil {
			return eris.Wrapf(err, "failed to reach redis at %s", cfg.RedisAddr)
		}
		deps.Notifier = notify.NewRedis(redisClient, "")
		deps.Session = notify.NewRedisSession(redisClient, "", cfg.MatchStreamMaxLen)
	} else {
		deps.Session = notify.LogSession(scope)
	}
	if cfg.AutoAccept || deps.Notifier == nil {
		scope.Log.Warn("ready checks are accepted automatically")
		deps.Notifier = notify.AutoAccept(scope, responder)
	}

	var ticketJournal *journal.SQLite
	if cfg.JournalPath != "" {
		ticketJournal, err = journal.Open(ctx, cfg.JournalPath)
		if err != nil {
			return err
		}
		defer ticketJournal.Close()
		deps.Journal = ticketJournal
	}

	mm := engine.New(cfg, rules, deps)
	responder.engine = mm
	if _, err = mm.Restore(scope); err != nil {
		return err
	}

	srv := server.New(registry, monitor)
	if err = srv.Listen(cfg.GRPCAddress, cfg.MetricsAddress); err != nil {
		return err
	}

	group, groupCtx := errgroup.WithContext(ctx)
	runScope := scope.WithContext(groupCtx)

	group.Go(func() error { return mm.Run(runScope) })
	group.Go(func() error { return srv.Serve(runScope) })
	if redisClient != nil && !cfg.AutoAccept {
		listener := notify.NewAnswerListener(redisClient, "", mm)
		group.Go(func() error { return listener.Run(runScope) })
	}
	if ticketJournal != nil {
		group.Go(func() error { return pruneJournal(runScope, ticketJournal, cfg.TombstoneTTL()) })
	}

	err = group.Wait()
	mm.Close()
	scope.Log.Info("matchmaker stopped")

	return err
}

func ratingStore(ctx context.Context, cfg *config.Config) (matchmaker.RatingStore, func(), error) {
	switch {
	case cfg.RatingStoreDSN != "":
		pool, err := ratingstore.Connect(ctx, cfg.RatingStoreDSN)
		if err != nil {
			return nil, nil, err
		}
		return ratingstore.NewPostgres(pool), pool.Close, nil
	case cfg.RatingsFile != "":
		store, err := ratingstore.LoadStatic(cfg.RatingsFile, ratingstore.WithDefaultRating(cfg.DefaultRating))
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	default:
		return ratingstore.NewStatic(ratingstore.WithDefaultRating(cfg.DefaultRating)), func() {}, nil
	}
}

// pruneJournal drops terminal records once status polls can no longer see
// them.
func pruneJournal(scope *envelope.Scope, j *journal.SQLite, keep time.Duration) error {
	ticker := time.NewTicker(keep)
	defer ticker.Stop()

	for {
		select {
		case <-scope.Ctx.Done():
			return nil
		case now := <-ticker.C:
			pruned, err := j.Prune(scope.Ctx, now.Add(-keep))
			if err != nil {
				scope.Log.Errorf("failed to prune journal: %v", err)
				continue
			}
			scope.Log.Debugf("pruned %d journal records", pruned)
		}
	}
}

// lateResponder lets the notifier answer through an engine built after it.
type lateResponder struct {
	engine *engine.Engine
}

func (r *lateResponder) Accept(scope *envelope.Scope, ticketID string) error {
	if r.engine == nil {
		return fmt.Errorf("%w: engine not started", models.ErrProposalNotFound)
	}
	return r.engine.Accept(scope, ticketID)
}

func (r *lateResponder) Decline(scope *envelope.Scope, ticketID string) error {
	if r.engine == nil {
		return fmt.Errorf("%w: engine not started", models.ErrProposalNotFound)
	}
	return r.engine.Decline(scope, ticketID)
}
