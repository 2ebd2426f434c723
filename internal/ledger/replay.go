package ledger

import "github.com/ethereum/go-ethereum/common"

// ReplayGuard is a one-shot consumption set for one semantic class of
// cross-network identifier. Deposits, remote withdrawal requests and outbound
// transfer operations each get their own instance; the namespaces never
// share keys.
//
// A guard has no locking of its own. It is owned by a ledger state object and
// mutated only inside that state's critical section, so a Consume is
// inseparable from the effect it protects: callers must finish every
// validation step first and call Consume as part of the commit.
type ReplayGuard struct {
	seen map[common.Hash]struct{}
}

// NewReplayGuard returns an empty guard.
func NewReplayGuard() *ReplayGuard {
	return &ReplayGuard{seen: make(map[common.Hash]struct{})}
}

// Consumed reports whether id has already been consumed.
func (g *ReplayGuard) Consumed(id common.Hash) bool {
	_, ok := g.seen[id]
	return ok
}

// Consume marks id as consumed. It fails with ErrReplay if the id was
// already marked, leaving the set unchanged.
func (g *ReplayGuard) Consume(id common.Hash) error {
	if _, ok := g.seen[id]; ok {
		return ErrReplay
	}
	g.seen[id] = struct{}{}
	return nil
}

// Restore re-marks an id during state rehydration without the one-shot check.
func (g *ReplayGuard) Restore(id common.Hash) {
	g.seen[id] = struct{}{}
}
