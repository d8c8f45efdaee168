package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"

	"github.com/poanetwork/layer-bridge/breaker"
	"github.com/poanetwork/layer-bridge/cache"
	"github.com/poanetwork/layer-bridge/config"
	"github.com/poanetwork/layer-bridge/contract"
	"github.com/poanetwork/layer-bridge/db"
	"github.com/poanetwork/layer-bridge/entity"
	"github.com/poanetwork/layer-bridge/ethclient"
	"github.com/poanetwork/layer-bridge/events"
	"github.com/poanetwork/layer-bridge/l1client"
	"github.com/poanetwork/layer-bridge/logging"
	"github.com/poanetwork/layer-bridge/oracle"
	"github.com/poanetwork/layer-bridge/pubsub"
	"github.com/poanetwork/layer-bridge/registry"
	"github.com/poanetwork/layer-bridge/relayer"
	"github.com/poanetwork/layer-bridge/repository"
	"github.com/poanetwork/layer-bridge/resilience"
	"github.com/poanetwork/layer-bridge/swap"
	"github.com/poanetwork/layer-bridge/zkgate"
	"github.com/poanetwork/layer-bridge/zkgate/groth16"
)

// app holds every long-lived component of a bridge process.
type app struct {
	cfg         *config.Config
	logger      *logrus.Logger
	repo        *repository.Repo
	registry    *registry.Registry
	breakers    *breaker.Set
	bus         *events.Bus
	l1Nodes     *resilience.NodeManager
	l2Nodes     *resilience.NodeManager
	l1          *l1client.Ledger
	l2          *contract.BridgeContract
	secondary   pubsub.Channel
	relayer     *relayer.Relayer
	coordinator *swap.Coordinator
	closers     []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.WithError(err).Warn("can't close component")
		}
	}
}

func newApp(ctx context.Context, cfg *config.Config, migrate bool) (a *app, err error) {
	logger := logging.New()
	logger.SetLevel(cfg.LogLevel)
	a = &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if err = a.initStorage(ctx, migrate); err != nil {
		return nil, err
	}
	if err = a.initLedgers(); err != nil {
		return nil, err
	}

	a.bus = events.NewBus(logger)
	a.breakers = breaker.NewSet(cfg.Breaker, logger)
	a.breakers.OnStateChange(func(route entity.Route, from, to entity.BreakerState) {
		a.bus.Publish(events.Event{Type: events.BreakerStateChanged, Route: route, From: from, To: to})
	})

	gate, err := newGate(cfg.ZK, logger)
	if err != nil {
		return nil, err
	}
	var attestor oracle.Attestor
	if len(cfg.Oracle.AttestorKeys) > 0 {
		keys, err := oracle.NewKeyAttestor(cfg.Oracle.AttestorKeys)
		if err != nil {
			return nil, err
		}
		attestor = keys
	}

	var sealer *pubsub.Sealer
	if cfg.Secondary != nil && len(cfg.Secondary.Brokers) > 0 {
		if sealer, err = pubsub.NewSealerFromHex(cfg.Secondary.EncryptionKey); err != nil {
			return nil, err
		}
		kafka, err := pubsub.NewKafkaChannel(cfg.Secondary, logger)
		if err != nil {
			return nil, err
		}
		a.secondary = kafka
		a.closers = append(a.closers, kafka.Close)
	}

	statusCache, err := a.newCache()
	if err != nil {
		return nil, err
	}

	handlers := relayer.NewHandlers()
	for _, msgType := range entity.MessageTypes() {
		handlers.Register(msgType, relayer.LogHandler(logger))
	}

	a.relayer = relayer.New(relayer.Options{
		Config:    cfg,
		Registry:  a.registry,
		Oracle:    oracle.NewVerifier(cfg.Oracle, logger),
		Attestor:  attestor,
		Breakers:  a.breakers,
		Gate:      gate,
		Handlers:  handlers,
		L2:        a.l2,
		L1:        a.l1,
		Refunder:  relayer.NewLedgerRefunder(a.l1, a.l2.Transactor()),
		Secondary: a.secondary,
		Sealer:    sealer,
		Cache:     statusCache,
		Bus:       a.bus,
		Cursors:   a.repo.Cursors,
		Logger:    logger,
	})
	a.coordinator = swap.NewCoordinator(swap.Options{
		Config:   cfg,
		Swaps:    a.repo.Swaps,
		L2:       a.l2,
		L1:       a.l1,
		Breakers: a.breakers,
		Cache:    statusCache,
		Bus:      a.bus,
		Logger:   logger,
	})
	return a, nil
}

func (a *app) initStorage(ctx context.Context, migrate bool) error {
	if a.cfg.Storage == config.StorageMemory {
		a.logger.Warn("using in-memory storage, state is lost on restart")
		a.repo = repository.NewMemoryRepo()
	} else {
		conn, err := db.NewDB(a.cfg.DBConfig)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, conn.Close)
		if migrate {
			if err = conn.Migrate(); err != nil {
				return err
			}
		}
		a.repo = repository.NewRepo(conn)
	}
	reg, err := registry.New(ctx, a.repo.Messages, a.cfg.Messages.MaxRetryCount, a.logger)
	if err != nil {
		return err
	}
	a.registry = reg
	return nil
}

func (a *app) initLedgers() error {
	cfg := a.cfg
	l2Clients := make([]ethclient.Client, 0, len(cfg.L2.RPC.Hosts))
	for _, host := range cfg.L2.RPC.Hosts {
		client, err := ethclient.NewClient(host, cfg.L2.RPC.Timeout, cfg.L2.RPC.RPS, cfg.L2.ChainID)
		if err != nil {
			return fmt.Errorf("can't dial l2 rpc client: %w", err)
		}
		l2Clients = append(l2Clients, client)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.L2.PrivateKey, "0x"))
	if err != nil {
		return fmt.Errorf("can't parse l2 private key: %w", err)
	}
	chainID := l2Clients[0].ChainID()
	a.l2Nodes = resilience.NewNodeManager("l2", cfg.L2.RPC.Hosts, cfg.Resilience.NodeHealth, a.logger)
	a.l2 = contract.NewBridgeContract(cfg.L2.BridgeAddress, l2Clients, resilience.NewExecutor(cfg.Resilience, a.l2Nodes),
		func(c *contract.Contract) *contract.Transactor {
			return contract.NewTransactor(c, key, chainID, a.logger)
		})

	l1Clients := make([]l1client.Client, 0, len(cfg.L1.RPC.Hosts))
	for _, host := range cfg.L1.RPC.Hosts {
		client, err := l1client.NewClient(host, cfg.L1.RPC.Timeout, cfg.L1.RPC.RPS)
		if err != nil {
			return fmt.Errorf("can't dial l1 gateway client: %w", err)
		}
		l1Clients = append(l1Clients, client)
	}
	a.l1Nodes = resilience.NewNodeManager("l1", cfg.L1.RPC.Hosts, cfg.Resilience.NodeHealth, a.logger)
	a.l1 = l1client.NewLedger(l1Clients, resilience.NewExecutor(cfg.Resilience, a.l1Nodes))
	return nil
}

func newGate(cfg *config.ZKConfig, logger logging.Logger) (*zkgate.Gate, error) {
	gate, err := zkgate.New(cfg.CacheSize, logger)
	if err != nil {
		return nil, err
	}
	for msgType, path := range cfg.VerifyingKeys {
		v, err := groth16.LoadVerifier(path)
		if err != nil {
			return nil, fmt.Errorf("can't load verifying key for %s: %w", msgType, err)
		}
		gate.Register(entity.MessageType(msgType), v)
	}
	return gate, nil
}

func (a *app) newCache() (cache.StatusCache, error) {
	if a.cfg.Redis == nil {
		return cache.NewMemory(a.cfg.Resilience.CallTimeout * 4), nil
	}
	c, err := cache.NewRedis(a.cfg.Redis.URL, a.cfg.Redis.TTL)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, c.Close)
	return c, nil
}
