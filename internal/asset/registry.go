package asset

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/crosschain-arb/internal/config"
)

// Registry is a thread-safe registry of known assets.
type Registry struct {
	mu       sync.RWMutex
	byID     map[AssetID]*Asset
	bySymbol map[string][]*Asset // same symbol on different chains
}

// NewRegistry creates a new empty asset registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:     make(map[AssetID]*Asset),
		bySymbol: make(map[string][]*Asset),
	}
}

// NewRegistryFromConfig registers every configured token on every chain it
// has an address for, plus each chain's native coin.
func NewRegistryFromConfig(cfg *config.Config) (*Registry, error) {
	r := NewRegistry()
	chainIDs := make(map[string]uint64, len(cfg.Chains))

	for _, ch := range cfg.Chains {
		chainIDs[ch.Name] = ch.ChainID
		symbol := ch.NativeCurrency
		if symbol == "" {
			symbol = "ETH"
		}
		if err := r.Register(NewNative(ch.ChainID, symbol, symbol)); err != nil {
			return nil, err
		}
	}

	for _, t := range cfg.Tokens {
		decimals := t.Decimals
		if decimals == 0 {
			decimals = 18
		}
		for chain, addr := range t.Addresses {
			id, ok := chainIDs[chain]
			if !ok {
				return nil, fmt.Errorf("asset: token %s references unknown chain %s", t.Symbol, chain)
			}
			if err := r.Register(NewToken(id, common.HexToAddress(addr), t.Symbol, t.Name, decimals)); err != nil {
				return nil, err
			}
		}
	}

	return r, nil
}

// Register adds an asset. Registering the same ID twice is an error.
func (r *Registry) Register(a *Asset) error {
	if a == nil {
		return ErrNilAsset
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[a.ID()]; exists {
		return fmt.Errorf("asset: %s already registered", a.ID())
	}
	r.byID[a.ID()] = a
	r.bySymbol[a.Symbol()] = append(r.bySymbol[a.Symbol()], a)
	return nil
}

// Get retrieves an asset by its ID.
func (r *Registry) Get(id AssetID) (*Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byID[id]
	return a, ok
}

// GetBySymbolAndChain retrieves an asset by symbol and chain ID.
func (r *Registry) GetBySymbolAndChain(symbol string, chainID uint64) (*Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.bySymbol[symbol] {
		if a.ChainID() == chainID {
			return a, true
		}
	}
	return nil, false
}

// GetToken retrieves a token by chain and address.
func (r *Registry) GetToken(chainID uint64, address common.Address) (*Asset, bool) {
	if address == (common.Address{}) {
		return r.Get(NewNativeAssetID(chainID))
	}
	return r.Get(NewTokenAssetID(chainID, address))
}

// Chains returns the chain IDs a symbol is registered on, ascending.
func (r *Registry) Chains(symbol string) []uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]uint64, 0, len(r.bySymbol[symbol]))
	for _, a := range r.bySymbol[symbol] {
		out = append(out, a.ChainID())
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Count returns the number of registered assets.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
