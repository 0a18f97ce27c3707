// Package di contains dependency injection tokens for the chain context.
package di

import (
	"github.com/fd1az/crosschain-arb/business/chain/app"
	"github.com/fd1az/crosschain-arb/business/chain/infra/ethereum"
	"github.com/fd1az/crosschain-arb/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Manager     = di.NewToken[*app.Manager]("chain.Manager")
	ChainClient = di.NewToken[app.ChainClient]("chain.ChainClient")
	ClientPool  = di.NewToken[*ethereum.ClientPool]("chain.ClientPool")
)

// Private dependency tokens - internal to the chain module
var (
	Prober    = di.NewToken[app.Prober]("chain:prober")
	GasOracle = di.NewToken[app.GasOracle]("chain:gasOracle")
)

func GetManager(c di.ServiceRegistry) *app.Manager {
	return di.GetToken(c, Manager)
}

func GetChainClient(c di.ServiceRegistry) app.ChainClient {
	return di.GetToken(c, ChainClient)
}

func GetClientPool(c di.ServiceRegistry) *ethereum.ClientPool {
	return di.GetToken(c, ClientPool)
}

func GetProber(c di.ServiceRegistry) app.Prober {
	return di.GetToken(c, Prober)
}

func GetGasOracle(c di.ServiceRegistry) app.GasOracle {
	return di.GetToken(c, GasOracle)
}
