// Package di contains dependency injection tokens for the bridge context.
package di

import (
	"github.com/fd1az/crosschain-arb/business/bridge/app"
	"github.com/fd1az/crosschain-arb/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Registry     = di.NewToken[*app.Registry]("bridge.Registry")
	BridgeClient = di.NewToken[app.BridgeClient]("bridge.BridgeClient")
)

func GetRegistry(c di.ServiceRegistry) *app.Registry {
	return di.GetToken(c, Registry)
}

func GetBridgeClient(c di.ServiceRegistry) app.BridgeClient {
	return di.GetToken(c, BridgeClient)
}
