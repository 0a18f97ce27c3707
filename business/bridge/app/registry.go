package app

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/fd1az/crosschain-arb/business/bridge/domain"
	"github.com/fd1az/crosschain-arb/internal/apperror"
	"github.com/fd1az/crosschain-arb/internal/config"
)

// Registry is the immutable catalogue of configured bridges.
type Registry struct {
	bridges []domain.Bridge
	byName  map[string]domain.Bridge
}

// NewRegistry builds a registry. Bridge names must be unique.
func NewRegistry(bridges []domain.Bridge) (*Registry, error) {
	r := &Registry{byName: make(map[string]domain.Bridge, len(bridges))}
	for _, b := range bridges {
		if _, dup := r.byName[b.Name]; dup {
			return nil, fmt.Errorf("bridge %s registered twice", b.Name)
		}
		r.byName[b.Name] = b
		r.bridges = append(r.bridges, b)
	}
	return r, nil
}

// NewRegistryFromConfig builds a registry from the bridges config section.
func NewRegistryFromConfig(cfgs []config.BridgeConfig) (*Registry, error) {
	bridges := make([]domain.Bridge, 0, len(cfgs))
	for _, c := range cfgs {
		b := domain.Bridge{
			Name:                     c.Name,
			FeePercent:               c.FeePercent,
			EstimatedTransferSeconds: c.EstimatedTransferSeconds,
			MinAmount:                c.MinAmount,
			MaxAmount:                c.MaxAmount,
			Routes:                   make(map[domain.Route]struct{}, len(c.Routes)),
		}
		for _, r := range c.Routes {
			from, to, ok := config.SplitRoute(r)
			if !ok {
				return nil, fmt.Errorf("bridge %s: invalid route %q", c.Name, r)
			}
			b.Routes[domain.Route{From: from, To: to}] = struct{}{}
			if c.Bidirectional {
				b.Routes[domain.Route{From: to, To: from}] = struct{}{}
			}
		}
		bridges = append(bridges, b)
	}
	return NewRegistry(bridges)
}

// All returns every bridge in registration order.
func (r *Registry) All() []domain.Bridge {
	return append([]domain.Bridge(nil), r.bridges...)
}

// Get returns a bridge by name.
func (r *Registry) Get(name string) (domain.Bridge, bool) {
	b, ok := r.byName[name]
	return b, ok
}

// Eligible returns the bridges that serve from->to and accept amount,
// cheapest first.
func (r *Registry) Eligible(from, to string, amount decimal.Decimal) []domain.Bridge {
	var out []domain.Bridge
	for _, b := range r.bridges {
		if b.Supports(from, to) && b.Accepts(amount) {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if c := a.FeePercent.Cmp(b.FeePercent); c != 0 {
			return c < 0
		}
		if a.EstimatedTransferSeconds != b.EstimatedTransferSeconds {
			return a.EstimatedTransferSeconds < b.EstimatedTransferSeconds
		}
		return a.Name < b.Name
	})
	return out
}

// Cheapest returns the lowest-fee eligible bridge. Ties go to the faster
// bridge, then by name.
func (r *Registry) Cheapest(from, to string, amount decimal.Decimal) (domain.Bridge, error) {
	eligible := r.Eligible(from, to, amount)
	if len(eligible) == 0 {
		return domain.Bridge{}, apperror.New(apperror.CodeNoBridgeRoute,
			apperror.WithContext(fmt.Sprintf("%s->%s amount %s", from, to, amount)))
	}
	return eligible[0], nil
}

// EstimateFee returns the named bridge's fee for amount.
func (r *Registry) EstimateFee(name string, amount decimal.Decimal) (decimal.Decimal, error) {
	b, ok := r.byName[name]
	if !ok {
		return decimal.Zero, apperror.NotFound(apperror.CodeNotFound, "bridge "+name)
	}
	return b.Fee(amount), nil
}
