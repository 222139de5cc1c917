package source

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/account-strategy/internal/model"
	"github.com/sells-group/account-strategy/internal/store"
)

// Store loads the accounts previously imported into the database.
type Store struct {
	Store store.Store
}

func (s *Store) Name() string { return "store" }

func (s *Store) Load(ctx context.Context) (*model.Snapshot, error) {
	accounts, err := s.Store.LoadAccounts(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "store source: load accounts")
	}
	snap, err := model.NewSnapshot(time.Time{}, accounts)
	return snap, eris.Wrap(err, "store source: snapshot")
}
