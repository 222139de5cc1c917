// Package model defines the account, scoring, and report types shared by the
// engine, its data sources, and its sinks.
package model

import (
	"slices"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// RepTier is the sales resource tier assigned to an account.
type RepTier string

const (
	RepTierNone    RepTier = "none"
	RepTierInside  RepTier = "inside"
	RepTierOutside RepTier = "outside"
)

// Valid reports whether t is one of the known tiers.
func (t RepTier) Valid() bool {
	switch t {
	case RepTierNone, RepTierInside, RepTierOutside:
		return true
	}
	return false
}

// Assigned reports whether any rep covers the account.
func (t RepTier) Assigned() bool {
	return t == RepTierInside || t == RepTierOutside
}

// ParseRepTier maps free-form rep role labels ("Inside Sales", "Field",
// "Unassigned", "") onto a RepTier.
func ParseRepTier(s string) (RepTier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "no rep", "unassigned", "no coverage":
		return RepTierNone, nil
	case "inside", "inside sales", "inside rep", "isr":
		return RepTierInside, nil
	case "outside", "outside sales", "outside rep", "field", "field sales", "osr":
		return RepTierOutside, nil
	default:
		return "", eris.Wrapf(ErrInvalidInput, "unknown rep tier %q", s)
	}
}

// AccountStatus is the lifecycle status of an account.
type AccountStatus string

const (
	StatusActive    AccountStatus = "active"
	StatusDormant   AccountStatus = "dormant"
	StatusDeclining AccountStatus = "declining"
)

// Valid reports whether s is one of the known statuses.
func (s AccountStatus) Valid() bool {
	switch s {
	case StatusActive, StatusDormant, StatusDeclining:
		return true
	}
	return false
}

// ParseAccountStatus normalizes a status label.
func ParseAccountStatus(s string) (AccountStatus, error) {
	switch st := AccountStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusActive, StatusDormant, StatusDeclining:
		return st, nil
	default:
		return "", eris.Wrapf(ErrInvalidInput, "unknown account status %q", s)
	}
}

// Order is a single purchase in an account's history.
type Order struct {
	OrderID    string    `json:"order_id"`
	CustomerID string    `json:"customer_id"`
	Date       time.Time `json:"order_date"`
	Value      float64   `json:"order_value"`
	Category   string    `json:"category,omitempty"`
	SKU        string    `json:"sku,omitempty"`
	Margin     float64   `json:"margin,omitempty"`
}

// Account is a customer with its lifetime order history.
type Account struct {
	CustomerID string        `json:"customer_id"`
	Name       string        `json:"account_name"`
	RepTier    RepTier       `json:"rep_tier"`
	Status     AccountStatus `json:"account_status"`
	Orders     []Order       `json:"orders"`
}

// OrdersAsOf returns the orders dated on or before asOf.
func (a *Account) OrdersAsOf(asOf time.Time) []Order {
	out := make([]Order, 0, len(a.Orders))
	for _, o := range a.Orders {
		if !o.Date.After(asOf) {
			out = append(out, o)
		}
	}
	return out
}

// LastOrderDate returns the most recent order date on or before asOf.
// ok is false when the account has no such order.
func (a *Account) LastOrderDate(asOf time.Time) (last time.Time, ok bool) {
	for _, o := range a.Orders {
		if o.Date.After(asOf) {
			continue
		}
		if !ok || o.Date.After(last) {
			last, ok = o.Date, true
		}
	}
	return last, ok
}

// Revenue returns the total order value on or before asOf.
func (a *Account) Revenue(asOf time.Time) float64 {
	var sum float64
	for _, o := range a.Orders {
		if !o.Date.After(asOf) {
			sum += o.Value
		}
	}
	return sum
}

// Snapshot is an immutable view of every account for one report run.
// It is built once by a source and never mutated by the engine.
type Snapshot struct {
	AsOf     time.Time
	accounts map[string]Account
	ids      []string
}

// NewSnapshot builds a snapshot from accounts keyed by customer id. Orders
// are sorted by date so downstream consumers see a stable order.
func NewSnapshot(asOf time.Time, accounts []Account) (*Snapshot, error) {
	m := make(map[string]Account, len(accounts))
	for _, a := range accounts {
		if a.CustomerID == "" {
			return nil, eris.Wrapf(ErrInvalidInput, "snapshot: account %q has empty customer_id", a.Name)
		}
		if _, dup := m[a.CustomerID]; dup {
			return nil, eris.Wrapf(ErrInvalidInput, "snapshot: duplicate customer_id %s", a.CustomerID)
		}
		orders := slices.Clone(a.Orders)
		slices.SortStableFunc(orders, func(x, y Order) int { return x.Date.Compare(y.Date) })
		a.Orders = orders
		m[a.CustomerID] = a
	}
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return &Snapshot{AsOf: asOf, accounts: m, ids: ids}, nil
}

// IDs returns customer ids in ascending order.
func (s *Snapshot) IDs() []string {
	return slices.Clone(s.ids)
}

// Len returns the number of accounts.
func (s *Snapshot) Len() int {
	return len(s.ids)
}

// Get returns the account for id.
func (s *Snapshot) Get(id string) (Account, bool) {
	a, ok := s.accounts[id]
	return a, ok
}

// Accounts returns all accounts ordered by customer id.
func (s *Snapshot) Accounts() []Account {
	out := make([]Account, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, s.accounts[id])
	}
	return out
}
