package source

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/account-strategy/internal/model"
	"github.com/sells-group/account-strategy/pkg/salesforce"
)

// Salesforce loads accounts and activated orders through SOQL.
type Salesforce struct {
	Client salesforce.Client
	Fields salesforce.AccountFields
	// Since bounds the order history. Zero loads everything.
	Since time.Time
}

func (s *Salesforce) Name() string { return "salesforce" }

func (s *Salesforce) Load(ctx context.Context) (*model.Snapshot, error) {
	sfAccounts, err := salesforce.ListAccounts(ctx, s.Client, s.Fields)
	if err != nil {
		return nil, eris.Wrap(err, "salesforce source: accounts")
	}
	sfOrders, err := salesforce.ListOrders(ctx, s.Client, s.Since)
	if err != nil {
		return nil, eris.Wrap(err, "salesforce source: orders")
	}

	accounts := make([]model.Account, 0, len(sfAccounts))
	idx := make(map[string]int, len(sfAccounts))
	for _, a := range sfAccounts {
		idx[a.ID] = len(accounts)
		accounts = append(accounts, model.Account{
			CustomerID: a.ID,
			Name:       a.Name,
			RepTier:    repTier(a.RepTier),
			Status:     accountStatus(a.Status),
		})
	}

	for _, o := range sfOrders {
		i, ok := idx[o.AccountID]
		if !ok {
			return nil, model.NewAccountError(o.AccountID, model.StageIngest, "customer_id",
				eris.Wrapf(model.ErrMissingReference, "order %s references unknown account", o.ID))
		}
		accounts[i].Orders = append(accounts[i].Orders, model.Order{
			OrderID:    o.ID,
			CustomerID: o.AccountID,
			Date:       parseDate(o.EffectiveDate),
			Value:      o.TotalAmount,
		})
	}

	zap.L().Info("salesforce source: loaded",
		zap.Int("accounts", len(accounts)),
		zap.Int("orders", len(sfOrders)),
	)

	snap, err := model.NewSnapshot(time.Time{}, accounts)
	return snap, eris.Wrap(err, "salesforce source: snapshot")
}
