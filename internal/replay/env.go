package replay

import (
	"neoswaps/internal/engine"
	"neoswaps/internal/ledger"
	"neoswaps/internal/storage"
)

// Env is an engine wired to the journaled reference collaborators. Setup
// calls reach the collaborators through it.
type Env struct {
	Engine      *engine.Engine
	Ledger      *ledger.Memory
	Markets     *ledger.Markets
	Sets        *ledger.CompleteSetOps
	CreatorFees *ledger.CreatorFees
}

// NewEnv builds an empty ledger and market registry around store.
func NewEnv(cfg engine.Config, store storage.PoolStore) (*Env, error) {
	l := ledger.NewMemory()
	markets := ledger.NewMarkets()
	sets := ledger.NewCompleteSetOps(l, markets)
	creatorFees := ledger.NewCreatorFees(l, markets)

	eng, err := engine.New(cfg, engine.Deps{
		Store:        store,
		Ledger:       l,
		Markets:      markets,
		CompleteSets: sets,
		Tokens:       ledger.NewPositions(l, markets),
		ExternalFees: creatorFees,
	})
	if err != nil {
		return nil, err
	}
	return &Env{Engine: eng, Ledger: l, Markets: markets, Sets: sets, CreatorFees: creatorFees}, nil
}
