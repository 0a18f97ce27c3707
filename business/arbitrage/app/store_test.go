package app

import (
	"testing"
	"time"

	"github.com/fd1az/crosschain-arb/business/arbitrage/domain"
	"github.com/fd1az/crosschain-arb/internal/apperror"
)

func oppWith(id, route string, net string, expires time.Time) domain.Opportunity {
	return domain.Opportunity{
		ID:          id,
		SourceChain: route,
		TargetChain: "optimism",
		TokenSymbol: "WETH",
		Profit:      domain.ProfitResult{NetProfit: dec(net)},
		ExpiresAt:   expires,
	}
}

func TestStore_GetActiveSortsAndHidesExpired(t *testing.T) {
	clock := newFakeClock()
	s := NewStore(clock, 10)

	s.Put(oppWith("a", "arbitrum", "5", epoch.Add(time.Minute)))
	s.Put(oppWith("b", "base", "20", epoch.Add(time.Minute)))
	s.Put(oppWith("c", "polygon", "50", epoch)) // expiresAt == now is expired
	s.Put(oppWith("d", "ethereum", "12", epoch.Add(2*time.Minute)))

	active := s.GetActive()
	var ids []string
	for _, o := range active {
		ids = append(ids, o.ID)
	}
	want := []string{"b", "d", "a"}
	if len(ids) != len(want) {
		t.Fatalf("active = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("active = %v, want %v", ids, want)
		}
	}

	if _, err := s.Lookup("c"); !apperror.IsCode(err, apperror.CodeOpportunityExpired) {
		t.Errorf("Lookup(c) err = %v, want expired", err)
	}
	if _, err := s.Lookup("zzz"); !apperror.IsCode(err, apperror.CodeOpportunityNotFound) {
		t.Errorf("Lookup(zzz) err = %v, want not found", err)
	}
}

func TestStore_CleanupExpired(t *testing.T) {
	clock := newFakeClock()
	s := NewStore(clock, 10)
	s.Put(oppWith("a", "arbitrum", "5", epoch.Add(time.Minute)))
	s.Put(oppWith("b", "base", "5", epoch.Add(3*time.Minute)))

	clock.Advance(time.Minute)
	if n := s.CleanupExpired(); n != 1 {
		t.Fatalf("removed = %d, want 1", n)
	}
	if _, ok := s.Get("a"); ok {
		t.Error("a should be gone")
	}
	if _, ok := s.Get("b"); !ok {
		t.Error("b should remain")
	}
	if s.Total() != 2 {
		t.Errorf("total = %d, want 2", s.Total())
	}
}

func TestStore_NewerOpportunitySupersedesRoute(t *testing.T) {
	s := NewStore(newFakeClock(), 10)
	s.Put(oppWith("old", "arbitrum", "5", epoch.Add(time.Minute)))
	s.Put(oppWith("new", "arbitrum", "7", epoch.Add(time.Minute)))

	if _, ok := s.Get("old"); ok {
		t.Error("superseded opportunity still active")
	}
	active := s.GetActive()
	if len(active) != 1 || active[0].ID != "new" {
		t.Fatalf("active = %+v", active)
	}
	if s.Total() != 2 {
		t.Errorf("total = %d, want 2", s.Total())
	}
}

func TestStore_CompleteArchivesNewestFirst(t *testing.T) {
	s := NewStore(newFakeClock(), 2)
	for _, id := range []string{"a", "b", "c"} {
		opp := oppWith(id, id, "5", epoch.Add(time.Minute))
		s.Put(opp)
		done := s.Complete(opp, domain.ExecutionResult{OpportunityID: id, Outcome: domain.OutcomeAborted})
		if len(done.Executions) != 1 {
			t.Fatalf("%s trail = %d results", id, len(done.Executions))
		}
		if _, err := s.Lookup(id); !apperror.IsCode(err, apperror.CodeOpportunityNotFound) {
			t.Fatalf("Lookup(%s) after complete err = %v", id, err)
		}
	}

	archive := s.Archive()
	if len(archive) != 2 || archive[0].ID != "c" || archive[1].ID != "b" {
		t.Fatalf("archive = %+v", archive)
	}
}

func TestAverageNetProfit(t *testing.T) {
	if got := averageNetProfit(nil); !got.IsZero() {
		t.Errorf("empty average = %s", got)
	}
	got := averageNetProfit([]domain.Opportunity{
		{Profit: domain.ProfitResult{NetProfit: dec("10")}},
		{Profit: domain.ProfitResult{NetProfit: dec("20")}},
	})
	if !got.Equal(dec("15")) {
		t.Errorf("average = %s, want 15", got)
	}
}
