package ethereum

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/ethclient"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/crosschain-arb/business/chain/app"
	"github.com/fd1az/crosschain-arb/business/chain/domain"
	"github.com/fd1az/crosschain-arb/internal/apperror"
)

var _ app.Prober = (*Prober)(nil)

// Prober checks chain id and head block over JSON-RPC.
type Prober struct {
	pool   *ClientPool
	tracer trace.Tracer
}

func NewProber(pool *ClientPool) *Prober {
	return &Prober{pool: pool, tracer: otel.Tracer(tracerName)}
}

func (p *Prober) Probe(ctx context.Context, chain domain.ChainHandle, endpoint string) (domain.ProbeResult, error) {
	ctx, span := p.tracer.Start(ctx, "eth.probe",
		trace.WithAttributes(
			attribute.String("chain", chain.Name),
			attribute.String("endpoint", endpoint),
		),
	)
	defer span.End()

	id, err := call(ctx, p.pool, endpoint, func(c *ethclient.Client) (*big.Int, error) {
		return c.ChainID(ctx)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "chain id failed")
		return domain.ProbeResult{}, apperror.Wrap(err, apperror.CodeChainRPCError, "eth_chainId")
	}

	head, err := call(ctx, p.pool, endpoint, func(c *ethclient.Client) (uint64, error) {
		return c.BlockNumber(ctx)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "block number failed")
		return domain.ProbeResult{}, apperror.Wrap(err, apperror.CodeChainRPCError, "eth_blockNumber")
	}

	span.SetAttributes(
		attribute.Int64("chain_id", id.Int64()),
		attribute.Int64("block", int64(head)),
	)
	span.SetStatus(codes.Ok, "probed")

	return domain.ProbeResult{ChainID: id.Uint64(), BlockNumber: head}, nil
}
