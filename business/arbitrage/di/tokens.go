// Package di contains dependency injection tokens for the arbitrage context.
package di

import (
	"github.com/fd1az/crosschain-arb/business/arbitrage/app"
	"github.com/fd1az/crosschain-arb/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Engine = di.NewToken[*app.Engine]("arbitrage.Engine")
)

// Private dependency tokens - internal to the arbitrage module
var (
	Analyzer     = di.NewToken[*app.Analyzer]("arbitrage:analyzer")
	Scanner      = di.NewToken[*app.Scanner]("arbitrage:scanner")
	Store        = di.NewToken[*app.Store]("arbitrage:store")
	Lock         = di.NewToken[app.ExecutionLock]("arbitrage:lock")
	Orchestrator = di.NewToken[*app.Orchestrator]("arbitrage:orchestrator")
	Reporters    = di.NewToken[[]app.Reporter]("arbitrage:reporters")
)

func GetEngine(c di.ServiceRegistry) *app.Engine {
	return di.GetToken(c, Engine)
}

func GetAnalyzer(c di.ServiceRegistry) *app.Analyzer {
	return di.GetToken(c, Analyzer)
}

func GetScanner(c di.ServiceRegistry) *app.Scanner {
	return di.GetToken(c, Scanner)
}

func GetStore(c di.ServiceRegistry) *app.Store {
	return di.GetToken(c, Store)
}

func GetLock(c di.ServiceRegistry) app.ExecutionLock {
	return di.GetToken(c, Lock)
}

func GetOrchestrator(c di.ServiceRegistry) *app.Orchestrator {
	return di.GetToken(c, Orchestrator)
}

func GetReporters(c di.ServiceRegistry) []app.Reporter {
	return di.GetToken(c, Reporters)
}
