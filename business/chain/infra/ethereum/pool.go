// Package ethereum provides EVM chain infrastructure adapters.
package ethereum

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sony/gobreaker/v2"

	"github.com/fd1az/crosschain-arb/internal/apperror"
	"github.com/fd1az/crosschain-arb/internal/circuitbreaker"
	"github.com/fd1az/crosschain-arb/internal/logger"
)

const (
	tracerName = "github.com/fd1az/crosschain-arb/business/chain/infra/ethereum"
	meterName  = "github.com/fd1az/crosschain-arb/business/chain/infra/ethereum"
)

// ClientPool keeps one dialed client and one circuit breaker per endpoint.
// Adapters share it so failover never redials a healthy endpoint.
type ClientPool struct {
	logger logger.LoggerInterface

	mu       sync.RWMutex
	clients  map[string]*ethclient.Client
	breakers map[string]*circuitbreaker.CircuitBreaker[any]
}

// NewClientPool creates an empty pool.
func NewClientPool(log logger.LoggerInterface) *ClientPool {
	return &ClientPool{
		logger:   log,
		clients:  make(map[string]*ethclient.Client),
		breakers: make(map[string]*circuitbreaker.CircuitBreaker[any]),
	}
}

// Client returns the client for an endpoint, dialing on first use.
func (p *ClientPool) Client(ctx context.Context, endpoint string) (*ethclient.Client, error) {
	p.mu.RLock()
	c, ok := p.clients[endpoint]
	p.mu.RUnlock()
	if ok {
		return c, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[endpoint]; ok {
		return c, nil
	}

	c, err := ethclient.DialContext(ctx, endpoint)
	if err != nil {
		return nil, apperror.New(apperror.CodeChainDialFailed,
			apperror.WithCause(err),
			apperror.WithContext(endpoint))
	}
	p.clients[endpoint] = c
	return c, nil
}

func (p *ClientPool) breaker(endpoint string) *circuitbreaker.CircuitBreaker[any] {
	p.mu.RLock()
	b, ok := p.breakers[endpoint]
	p.mu.RUnlock()
	if ok {
		return b
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if b, ok := p.breakers[endpoint]; ok {
		return b
	}

	cfg := circuitbreaker.DefaultConfig("rpc:" + endpoint)
	cfg.OnStateChange = func(name string, from, to gobreaker.State) {
		p.logger.Info(context.Background(), "circuit breaker state change",
			"breaker", name, "from", from.String(), "to", to.String())
	}
	b = circuitbreaker.New[any](cfg)
	p.breakers[endpoint] = b
	return b
}

// Close closes every dialed client.
func (p *ClientPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for ep, c := range p.clients {
		c.Close()
		delete(p.clients, ep)
	}
}

// call runs fn against the endpoint's client through its breaker. An open
// breaker fails fast so failover moves on to the next endpoint.
func call[T any](ctx context.Context, p *ClientPool, endpoint string, fn func(*ethclient.Client) (T, error)) (T, error) {
	var zero T

	client, err := p.Client(ctx, endpoint)
	if err != nil {
		return zero, err
	}

	v, err := p.breaker(endpoint).Execute(func() (any, error) {
		return fn(client)
	})
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}

// CallContract runs a read-only call on the endpoint through its breaker.
func (p *ClientPool) CallContract(ctx context.Context, endpoint string, msg ethereum.CallMsg) ([]byte, error) {
	return call(ctx, p, endpoint, func(c *ethclient.Client) ([]byte, error) {
		return c.CallContract(ctx, msg, nil)
	})
}
