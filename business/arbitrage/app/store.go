package app

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"github.com/fd1az/crosschain-arb/business/arbitrage/domain"
	"github.com/fd1az/crosschain-arb/internal/apperror"
)

// Store is the time-boxed registry of live opportunities. A newer
// opportunity for the same route supersedes the older one. Executed
// opportunities move to a bounded archive with their results.
type Store struct {
	clock       Clock
	archiveSize int
	total       atomic.Int64

	mu      sync.RWMutex
	active  map[string]domain.Opportunity // id -> opportunity
	byRoute map[string]string             // route key -> id
	archive []domain.Opportunity          // oldest first
}

// NewStore creates an empty store.
func NewStore(clock Clock, archiveSize int) *Store {
	if clock == nil {
		clock = SystemClock
	}
	if archiveSize <= 0 {
		archiveSize = 500
	}
	return &Store{
		clock:       clock,
		archiveSize: archiveSize,
		active:      make(map[string]domain.Opportunity),
		byRoute:     make(map[string]string),
	}
}

// Put stores opp, replacing any active opportunity on the same route.
func (s *Store) Put(opp domain.Opportunity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	route := opp.RouteKey()
	if prev, ok := s.byRoute[route]; ok && prev != opp.ID {
		delete(s.active, prev)
	}
	s.active[opp.ID] = opp
	s.byRoute[route] = opp.ID
	s.total.Add(1)
}

// Get returns an active opportunity by id, expired or not.
func (s *Store) Get(id string) (domain.Opportunity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	opp, ok := s.active[id]
	return opp, ok
}

// Lookup returns the opportunity and whether it is still actionable. An
// archived id is reported as not found.
func (s *Store) Lookup(id string) (domain.Opportunity, error) {
	opp, ok := s.Get(id)
	if !ok {
		return domain.Opportunity{}, apperror.NotFound(apperror.CodeOpportunityNotFound, id)
	}
	if opp.IsExpired(s.clock.Now()) {
		return opp, apperror.New(apperror.CodeOpportunityExpired, apperror.WithContext(id))
	}
	return opp, nil
}

// GetActive returns non-expired opportunities by net profit descending.
func (s *Store) GetActive() []domain.Opportunity {
	now := s.clock.Now()

	s.mu.RLock()
	out := make([]domain.Opportunity, 0, len(s.active))
	for _, opp := range s.active {
		if !opp.IsExpired(now) {
			out = append(out, opp)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		ni, nj := out[i].Profit.NetProfit, out[j].Profit.NetProfit
		if !ni.Equal(nj) {
			return ni.GreaterThan(nj)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// CleanupExpired removes entries whose expiresAt <= now and returns how
// many were removed.
func (s *Store) CleanupExpired() int {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, opp := range s.active {
		if opp.IsExpired(now) {
			s.removeLocked(id, opp)
			removed++
		}
	}
	return removed
}

// Complete appends result to opp's audit trail and moves it to the
// archive. opp need not still be active.
func (s *Store) Complete(opp domain.Opportunity, result domain.ExecutionResult) domain.Opportunity {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.active[opp.ID]; ok {
		opp = cur
		s.removeLocked(opp.ID, opp)
	}

	trail := make([]domain.ExecutionResult, 0, len(opp.Executions)+1)
	trail = append(trail, opp.Executions...)
	opp.Executions = append(trail, result)

	s.archive = append(s.archive, opp)
	if over := len(s.archive) - s.archiveSize; over > 0 {
		s.archive = append([]domain.Opportunity(nil), s.archive[over:]...)
	}
	return opp
}

func (s *Store) removeLocked(id string, opp domain.Opportunity) {
	delete(s.active, id)
	if s.byRoute[opp.RouteKey()] == id {
		delete(s.byRoute, opp.RouteKey())
	}
}

// Archive returns executed opportunities, newest first.
func (s *Store) Archive() []domain.Opportunity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Opportunity, len(s.archive))
	for i, opp := range s.archive {
		out[len(s.archive)-1-i] = opp
	}
	return out
}

// Total is the number of opportunities ever stored.
func (s *Store) Total() int64 {
	return s.total.Load()
}

func averageNetProfit(active []domain.Opportunity) decimal.Decimal {
	if len(active) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, opp := range active {
		sum = sum.Add(opp.Profit.NetProfit)
	}
	return sum.Div(decimal.NewFromInt(int64(len(active))))
}
