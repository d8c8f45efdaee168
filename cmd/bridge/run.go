package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/poanetwork/layer-bridge/config"
	"github.com/poanetwork/layer-bridge/db"
	"github.com/poanetwork/layer-bridge/events"
	"github.com/poanetwork/layer-bridge/logging"
	"github.com/poanetwork/layer-bridge/presenter"
	"github.com/poanetwork/layer-bridge/relayer"
	"github.com/poanetwork/layer-bridge/watcher"
)

const defaultMetricsHost = ":2112"

func runCmd(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx, cfg, cfg.Storage != config.StorageMemory)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.run(ctx)
}

func migrateCmd(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if cfg.Storage == config.StorageMemory {
		return errors.New("migrations are only supported for postgres storage")
	}
	conn, err := db.ConnectToDBAndMigrate(cfg.DBConfig)
	if err != nil {
		return err
	}
	logging.New().Info("postgres migrations applied")
	return conn.Close()
}

func (a *app) run(ctx context.Context) error {
	logger := a.logger
	manager, err := watcher.NewManager(a.cfg, a.relayer, a.coordinator, a.registry, logger.WithField("service", "watcher"))
	if err != nil {
		return err
	}
	pool := relayer.NewPool(a.relayer, a.cfg.Workers.Concurrency, a.cfg.Workers.QueueSize, logger.WithField("service", "pool"))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return pool.Run(ctx)
	})
	g.Go(func() error {
		a.relayer.StartL2EventWatcher(ctx)
		return nil
	})
	g.Go(func() error {
		a.relayer.StartL1TagWatcher(ctx, pool)
		return nil
	})
	if a.secondary != nil {
		g.Go(func() error {
			return a.relayer.StartSecondaryConsumer(ctx, pool)
		})
	}
	g.Go(func() error {
		a.l2Nodes.StartRecovery(ctx, a.l2.Probe)
		return nil
	})
	g.Go(func() error {
		a.l1Nodes.StartRecovery(ctx, a.l1.Probe)
		return nil
	})
	g.Go(func() error {
		manager.Start(ctx)
		return nil
	})
	g.Go(func() error {
		a.logEvents(ctx)
		return nil
	})

	metricsHost := defaultMetricsHost
	if a.cfg.Metrics != nil && a.cfg.Metrics.Host != "" {
		metricsHost = a.cfg.Metrics.Host
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	servers := []*http.Server{{Addr: metricsHost, Handler: mux, ReadHeaderTimeout: 10 * time.Second}}
	if a.cfg.Presenter != nil {
		pr := presenter.NewPresenter(logger.WithField("service", "presenter"), a.relayer, a.coordinator, a.breakers,
			map[string]presenter.NodeRecords{"l1": a.l1Nodes, "l2": a.l2Nodes})
		servers = append(servers, &http.Server{Addr: a.cfg.Presenter.Host, Handler: pr.Handler(), ReadHeaderTimeout: 10 * time.Second})
	}
	for _, srv := range servers {
		srv := srv
		g.Go(func() error {
			logger.WithField("addr", srv.Addr).Info("starting http listener")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	logger.Info("bridge started")
	err = g.Wait()
	logger.Warn("bridge stopped")
	return err
}

// logEvents mirrors security relevant bus events into the log.
func (a *app) logEvents(ctx context.Context) {
	sub := a.bus.Subscribe("log", 256)
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-sub.C:
			if !ok {
				return
			}
			switch e.Type {
			case events.ReplayRejected:
				logging.Security(a.logger, string(e.Type)).WithFields(logrus.Fields{
					"message_id": e.MessageID,
					"actor":      e.Actor,
				}).Warn("replay rejected")
			case events.BreakerStateChanged:
				a.logger.WithFields(logrus.Fields{
					"route": e.Route,
					"from":  e.From,
					"to":    e.To,
				}).Warn("circuit breaker state changed")
			case events.MessageCanceled:
				a.logger.WithFields(logrus.Fields{
					"message_id": e.MessageID,
					"actor":      e.Actor,
				}).Info("message canceled")
			}
		}
	}
}
