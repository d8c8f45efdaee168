package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

var ErrInvalidConfig = errors.New("invalid config")

type ChainStatus string

const (
	ChainStatusInactive ChainStatus = "inactive"
	ChainStatusActive   ChainStatus = "active"
	ChainStatusPaused   ChainStatus = "paused"
)

type StorageBackend string

const (
	StoragePostgres StorageBackend = "postgres"
	StorageMemory   StorageBackend = "memory"
)

type RPCConfig struct {
	Hosts   []string      `yaml:"hosts"`
	Timeout time.Duration `yaml:"timeout"`
	RPS     float64       `yaml:"rps"`
}

// ChainConfig describes one side of the bridge.
type ChainConfig struct {
	ChainID       string      `yaml:"chain_id"`
	RPC           *RPCConfig  `yaml:"rpc"`
	FinalityDepth uint64      `yaml:"finality_depth"`
	FeeOracle     string      `yaml:"fee_oracle"`
	TrustLevel    uint        `yaml:"trust_level"`
	Status        ChainStatus `yaml:"status"`
}

func (c *ChainConfig) IsActive() bool {
	return c.Status == ChainStatusActive
}

type L1Config struct {
	ChainConfig  `yaml:",inline"`
	Bech32HRP    string        `yaml:"bech32_hrp"`
	Tag          string        `yaml:"tag"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

type L2Config struct {
	ChainConfig   `yaml:",inline"`
	BridgeAddress common.Address `yaml:"bridge_address"`
	PrivateKey    string         `yaml:"private_key"`
	StartBlock    uint64         `yaml:"start_block"`
	PollInterval  time.Duration  `yaml:"poll_interval"`
}

type FeesConfig struct {
	BaseFee    Ether `yaml:"base_fee"`
	FeePerByte Ether `yaml:"fee_per_byte"`
	ZKProofFee Ether `yaml:"zk_proof_fee"`
}

type MessagesConfig struct {
	MaxRetryCount  uint          `yaml:"max_retry_count"`
	MessageTimeout time.Duration `yaml:"message_timeout"`
}

type OracleConfig struct {
	QuorumPercentage uint             `yaml:"quorum_percentage"`
	Signers          []common.Address `yaml:"signers"`
	AttestorKeys     []string         `yaml:"attestor_keys"`
}

type RetryConfig struct {
	MaxRetries   int           `yaml:"max_retries"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

type NodeHealthConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	RecoveryInterval time.Duration `yaml:"recovery_interval"`
}

type ResilienceConfig struct {
	Retry       RetryConfig      `yaml:"retry"`
	CallTimeout time.Duration    `yaml:"call_timeout"`
	NodeHealth  NodeHealthConfig `yaml:"node_health"`
}

type BreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	ResetTimeout     time.Duration `yaml:"reset_timeout"`
}

type SwapConfig struct {
	DefaultTimelock time.Duration `yaml:"default_timelock"`
	LockTimeout     time.Duration `yaml:"lock_timeout"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	Tag             string        `yaml:"tag"`
}

type SecondaryConfig struct {
	Brokers       []string `yaml:"brokers"`
	Topic         string   `yaml:"topic"`
	GroupID       string   `yaml:"group_id"`
	EncryptionKey string   `yaml:"encryption_key"`
}

type RedisConfig struct {
	URL string        `yaml:"url"`
	TTL time.Duration `yaml:"ttl"`
}

type DBConfig struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	DB       string `yaml:"database"`
}

type WorkersConfig struct {
	Concurrency int `yaml:"concurrency"`
	QueueSize   int `yaml:"queue_size"`
}

type JobsConfig struct {
	SubmissionReconciler string `yaml:"submission_reconciler"`
	SwapReconciler       string `yaml:"swap_reconciler"`
	StuckMessages        string `yaml:"stuck_messages"`
}

type PresenterConfig struct {
	Host string `yaml:"host"`
}

type ZKConfig struct {
	VerifyingKeys map[string]string `yaml:"verifying_keys"`
	CacheSize     int               `yaml:"cache_size"`
}

type Config struct {
	L1         *L1Config        `yaml:"l1"`
	L2         *L2Config        `yaml:"l2"`
	Fees       FeesConfig       `yaml:"fees"`
	Messages   MessagesConfig   `yaml:"messages"`
	Oracle     OracleConfig     `yaml:"oracle"`
	Admins     []common.Address `yaml:"admins"`
	Resilience ResilienceConfig `yaml:"resilience"`
	Breaker    BreakerConfig    `yaml:"breaker"`
	Swap       SwapConfig       `yaml:"swap"`
	Secondary  *SecondaryConfig `yaml:"secondary"`
	Redis      *RedisConfig     `yaml:"redis"`
	DBConfig   *DBConfig        `yaml:"postgres"`
	Storage    StorageBackend   `yaml:"storage"`
	Workers    WorkersConfig    `yaml:"workers"`
	Jobs       JobsConfig       `yaml:"jobs"`
	Presenter  *PresenterConfig `yaml:"presenter"`
	Metrics    *PresenterConfig `yaml:"metrics"`
	ZK         *ZKConfig        `yaml:"zk"`
	LogLevel   logrus.Level     `yaml:"log_level"`
}

func setDefaults(cfg *Config) {
	if cfg.Messages.MaxRetryCount == 0 {
		cfg.Messages.MaxRetryCount = 3
	}
	if cfg.Messages.MessageTimeout == 0 {
		cfg.Messages.MessageTimeout = 24 * time.Hour
	}
	if cfg.Resilience.Retry.MaxRetries == 0 {
		cfg.Resilience.Retry.MaxRetries = 3
	}
	if cfg.Resilience.Retry.InitialDelay == 0 {
		cfg.Resilience.Retry.InitialDelay = 500 * time.Millisecond
	}
	if cfg.Resilience.Retry.MaxDelay == 0 {
		cfg.Resilience.Retry.MaxDelay = 10 * time.Second
	}
	if cfg.Resilience.CallTimeout == 0 {
		cfg.Resilience.CallTimeout = 30 * time.Second
	}
	if cfg.Resilience.NodeHealth.FailureThreshold == 0 {
		cfg.Resilience.NodeHealth.FailureThreshold = 3
	}
	if cfg.Resilience.NodeHealth.RecoveryInterval == 0 {
		cfg.Resilience.NodeHealth.RecoveryInterval = time.Minute
	}
	if cfg.Breaker.FailureThreshold == 0 {
		cfg.Breaker.FailureThreshold = 3
	}
	if cfg.Breaker.ResetTimeout == 0 {
		cfg.Breaker.ResetTimeout = 30 * time.Second
	}
	if cfg.Swap.DefaultTimelock == 0 {
		cfg.Swap.DefaultTimelock = time.Hour
	}
	if cfg.Swap.LockTimeout == 0 {
		cfg.Swap.LockTimeout = 2 * time.Minute
	}
	if cfg.Swap.PollInterval == 0 {
		cfg.Swap.PollInterval = 3 * time.Second
	}
	if cfg.Swap.Tag == "" {
		cfg.Swap.Tag = "swap"
	}
	if cfg.Storage == "" {
		cfg.Storage = StoragePostgres
	}
	if cfg.ZK == nil {
		cfg.ZK = new(ZKConfig)
	}
	if cfg.ZK.CacheSize == 0 {
		cfg.ZK.CacheSize = 1024
	}
	if cfg.Workers.Concurrency == 0 {
		cfg.Workers.Concurrency = 4
	}
	if cfg.Workers.QueueSize == 0 {
		cfg.Workers.QueueSize = 100
	}
	if cfg.Jobs.SubmissionReconciler == "" {
		cfg.Jobs.SubmissionReconciler = "@every 30s"
	}
	if cfg.Jobs.SwapReconciler == "" {
		cfg.Jobs.SwapReconciler = "@every 1m"
	}
	if cfg.Jobs.StuckMessages == "" {
		cfg.Jobs.StuckMessages = "@every 5m"
	}
	if cfg.Redis != nil && cfg.Redis.TTL == 0 {
		cfg.Redis.TTL = 30 * time.Second
	}
	for _, chain := range []*ChainConfig{l1Chain(cfg), l2Chain(cfg)} {
		if chain == nil {
			continue
		}
		if chain.Status == "" {
			chain.Status = ChainStatusActive
		}
		if chain.RPC != nil && chain.RPC.Timeout == 0 {
			chain.RPC.Timeout = 30 * time.Second
		}
	}
	if cfg.L1 != nil && cfg.L1.PollInterval == 0 {
		cfg.L1.PollInterval = 15 * time.Second
	}
	if cfg.L2 != nil && cfg.L2.PollInterval == 0 {
		cfg.L2.PollInterval = 15 * time.Second
	}
}

func l1Chain(cfg *Config) *ChainConfig {
	if cfg.L1 == nil {
		return nil
	}
	return &cfg.L1.ChainConfig
}

func l2Chain(cfg *Config) *ChainConfig {
	if cfg.L2 == nil {
		return nil
	}
	return &cfg.L2.ChainConfig
}

func validateChain(name string, chain *ChainConfig) error {
	if chain == nil {
		return fmt.Errorf("%s chain is not configured: %w", name, ErrInvalidConfig)
	}
	if chain.RPC == nil || len(chain.RPC.Hosts) == 0 {
		return fmt.Errorf("%s chain has no rpc hosts: %w", name, ErrInvalidConfig)
	}
	if chain.TrustLevel > 100 {
		return fmt.Errorf("%s chain trust level %d is out of range: %w", name, chain.TrustLevel, ErrInvalidConfig)
	}
	switch chain.Status {
	case ChainStatusActive, ChainStatusInactive, ChainStatusPaused:
	default:
		return fmt.Errorf("%s chain has unknown status %q: %w", name, chain.Status, ErrInvalidConfig)
	}
	return nil
}

func validate(cfg *Config) error {
	if err := validateChain("l1", l1Chain(cfg)); err != nil {
		return err
	}
	if err := validateChain("l2", l2Chain(cfg)); err != nil {
		return err
	}
	if cfg.L1.Bech32HRP == "" {
		return fmt.Errorf("l1 bech32_hrp is required: %w", ErrInvalidConfig)
	}
	if cfg.Oracle.QuorumPercentage == 0 || cfg.Oracle.QuorumPercentage > 100 {
		return fmt.Errorf("quorum percentage %d is out of range: %w", cfg.Oracle.QuorumPercentage, ErrInvalidConfig)
	}
	if len(cfg.Oracle.Signers) == 0 {
		return fmt.Errorf("at least one oracle signer is required: %w", ErrInvalidConfig)
	}
	switch cfg.Storage {
	case StoragePostgres:
		if cfg.DBConfig == nil {
			return fmt.Errorf("postgres storage requires postgres section: %w", ErrInvalidConfig)
		}
	case StorageMemory:
	default:
		return fmt.Errorf("unknown storage backend %q: %w", cfg.Storage, ErrInvalidConfig)
	}
	if cfg.Secondary != nil && (len(cfg.Secondary.Brokers) == 0 || cfg.Secondary.Topic == "") {
		return fmt.Errorf("secondary channel requires brokers and topic: %w", ErrInvalidConfig)
	}
	return nil
}

func ReadConfig(blob []byte) (*Config, error) {
	cfg := new(Config)
	if err := parseYaml(cfg, blob); err != nil {
		return nil, err
	}
	setDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func ReadConfigWithEnv(blob []byte) (*Config, error) {
	return ReadConfig([]byte(os.ExpandEnv(string(blob))))
}

func ReadConfigFromFile(path string) (*Config, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("can't read config file: %w", err)
	}
	return ReadConfigWithEnv(blob)
}
