package l1client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/time/rate"
)

var ErrNodeUnhealthy = errors.New("l1 node reports unhealthy")

// Client talks to a single L1 gateway endpoint.
type Client interface {
	URL() string
	SubmitBlock(ctx context.Context, tag string, data []byte) (string, error)
	Transfer(ctx context.Context, transfer *Transfer) (string, error)
	BlockMetadata(ctx context.Context, blockID string) (*BlockMetadata, error)
	BlocksByTag(ctx context.Context, tag string, fromIndex uint64, limit uint) ([]*TaggedBlock, error)
	Health(ctx context.Context) error
}

type rpcClient struct {
	url       string
	timeout   time.Duration
	limiter   *rate.Limiter
	rawClient *rpc.Client
}

func NewClient(url string, timeout time.Duration, rps float64) (Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	rawClient, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("can't dial l1 gateway: %w", err)
	}
	return NewClientWithRPC(url, rawClient, timeout, rps), nil
}

// NewClientWithRPC wraps an already connected rpc client, identified by url.
func NewClientWithRPC(url string, rawClient *rpc.Client, timeout time.Duration, rps float64) Client {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &rpcClient{
		url:       url,
		timeout:   timeout,
		limiter:   rate.NewLimiter(limit, 1),
		rawClient: rawClient,
	}
}

func (c *rpcClient) URL() string {
	return c.url
}

func (c *rpcClient) call(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	defer ObserveDuration(c.url, method)()
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.rawClient.CallContext(ctx, result, method, args...)
	ObserveError(c.url, method, err)
	return err
}

func (c *rpcClient) SubmitBlock(ctx context.Context, tag string, data []byte) (string, error) {
	var blockID string
	err := c.call(ctx, &blockID, "l1_submitBlock", tag, hexutil.Bytes(data))
	return blockID, err
}

func (c *rpcClient) Transfer(ctx context.Context, transfer *Transfer) (string, error) {
	var blockID string
	err := c.call(ctx, &blockID, "l1_transfer", transfer)
	return blockID, err
}

func (c *rpcClient) BlockMetadata(ctx context.Context, blockID string) (*BlockMetadata, error) {
	var meta BlockMetadata
	if err := c.call(ctx, &meta, "l1_getBlockMetadata", blockID); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (c *rpcClient) BlocksByTag(ctx context.Context, tag string, fromIndex uint64, limit uint) ([]*TaggedBlock, error) {
	var blocks []*TaggedBlock
	err := c.call(ctx, &blocks, "l1_getBlocksByTag", tag, hexutil.Uint64(fromIndex), hexutil.Uint(limit))
	return blocks, err
}

func (c *rpcClient) Health(ctx context.Context) error {
	var h nodeHealth
	if err := c.call(ctx, &h, "l1_health"); err != nil {
		return err
	}
	if !h.Healthy {
		return ErrNodeUnhealthy
	}
	return nil
}
