package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-redis/redis/v8"

	"github.com/poanetwork/layer-bridge/entity"
)

const keyPrefix = "bridge:"

type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(url string, ttl time.Duration) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return NewRedisWithClient(redis.NewClient(opt), ttl), nil
}

func NewRedisWithClient(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func messageKey(id common.Hash) string {
	return keyPrefix + "message:" + id.Hex()
}

func swapKey(id common.Hash) string {
	return keyPrefix + "swap:" + id.Hex()
}

func (r *Redis) get(ctx context.Context, key string, v interface{}) (bool, error) {
	defer ObserveDuration("get")()
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		Results.WithLabelValues("get", "miss").Inc()
		return false, nil
	}
	if err != nil {
		Results.WithLabelValues("get", "error").Inc()
		return false, fmt.Errorf("redis get %s: %w", key, err)
	}
	Results.WithLabelValues("get", "hit").Inc()
	if err = json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("can't decode cached %s: %w", key, err)
	}
	return true, nil
}

func (r *Redis) set(ctx context.Context, key string, v interface{}) error {
	defer ObserveDuration("set")()
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("can't encode %s: %w", key, err)
	}
	if err = r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		Results.WithLabelValues("set", "error").Inc()
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	Results.WithLabelValues("set", "ok").Inc()
	return nil
}

func (r *Redis) GetMessage(ctx context.Context, messageID common.Hash) (*entity.BridgeMessage, error) {
	msg := new(entity.BridgeMessage)
	ok, err := r.get(ctx, messageKey(messageID), msg)
	if !ok {
		return nil, err
	}
	return msg, nil
}

func (r *Redis) SetMessage(ctx context.Context, msg *entity.BridgeMessage) error {
	return r.set(ctx, messageKey(msg.MessageID), msg)
}

func (r *Redis) GetSwap(ctx context.Context, swapID common.Hash) (*entity.SwapRecord, error) {
	swap := new(entity.SwapRecord)
	ok, err := r.get(ctx, swapKey(swapID), swap)
	if !ok {
		return nil, err
	}
	return swap, nil
}

func (r *Redis) SetSwap(ctx context.Context, swap *entity.SwapRecord) error {
	return r.set(ctx, swapKey(swap.SwapID), swap)
}

func (r *Redis) Close() error {
	return r.client.Close()
}
