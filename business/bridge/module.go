// Package bridge implements the bridge bounded context.
package bridge

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/crosschain-arb/business/bridge/app"
	bridgeDI "github.com/fd1az/crosschain-arb/business/bridge/di"
	"github.com/fd1az/crosschain-arb/business/bridge/infra/rest"
	chainDI "github.com/fd1az/crosschain-arb/business/chain/di"
	"github.com/fd1az/crosschain-arb/internal/di"
	"github.com/fd1az/crosschain-arb/internal/monolith"
)

// Module implements the bridge bounded context.
type Module struct{}

// RegisterServices registers all bridge services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, bridgeDI.Registry, func(sr di.ServiceRegistry) *app.Registry {
		reg, err := app.NewRegistryFromConfig(monolith.ConfigFrom(sr).Bridges)
		if err != nil {
			panic("failed to create bridge registry: " + err.Error())
		}
		return reg
	})

	di.RegisterToken(c, bridgeDI.BridgeClient, func(sr di.ServiceRegistry) app.BridgeClient {
		cfg := monolith.ConfigFrom(sr)
		clientCfg := rest.DefaultClientConfig(cfg.Executor.BridgeAPIURL, cfg.Executor.BridgeAPIKey)
		if addr, ok := chainDI.GetChainClient(sr).(interface{ Address() common.Address }); ok {
			clientCfg.Wallet = addr.Address().Hex()
		}
		client, err := rest.NewClient(clientCfg, monolith.LoggerFrom(sr))
		if err != nil {
			return app.DisabledClient{Reason: err}
		}
		return client
	})

	return nil
}

// Startup validates the bridge catalogue.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	reg := bridgeDI.GetRegistry(mono.Services())
	mono.Logger().Info(ctx, "bridge module started", "bridges", len(reg.All()))
	return nil
}
