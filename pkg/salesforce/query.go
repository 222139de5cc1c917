package salesforce

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Account is the subset of a Salesforce Account the strategy engine needs.
// RepTier and Status hold the raw picklist values of the configured fields.
type Account struct {
	ID      string
	Name    string
	RepTier string
	Status  string
}

// AccountFields names the custom fields that hold rep tier and status.
type AccountFields struct {
	RepTier string
	Status  string
}

// Order represents an activated Salesforce Order.
type Order struct {
	ID            string  `json:"Id" salesforce:"Id"`
	AccountID     string  `json:"AccountId" salesforce:"AccountId"`
	OrderNumber   string  `json:"OrderNumber" salesforce:"OrderNumber"`
	EffectiveDate string  `json:"EffectiveDate" salesforce:"EffectiveDate"`
	TotalAmount   float64 `json:"TotalAmount" salesforce:"TotalAmount"`
	Type          string  `json:"Type" salesforce:"Type"`
}

// orderFields are the SOQL fields selected for Order queries.
var orderFields = []string{"Id", "AccountId", "OrderNumber", "EffectiveDate", "TotalAmount", "Type"}

var fieldName = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// ListAccounts returns every account with its rep tier and status fields.
func ListAccounts(ctx context.Context, c Client, fields AccountFields) ([]Account, error) {
	for _, f := range []string{fields.RepTier, fields.Status} {
		if !fieldName.MatchString(f) {
			return nil, eris.Errorf("sf: invalid field name %q", f)
		}
	}
	soql := fmt.Sprintf("SELECT Id, Name, %s, %s FROM Account ORDER BY Id", fields.RepTier, fields.Status)

	var rows []map[string]any
	if err := c.Query(ctx, soql, &rows); err != nil {
		return nil, eris.Wrap(err, "sf: list accounts")
	}

	out := make([]Account, 0, len(rows))
	for _, row := range rows {
		out = append(out, Account{
			ID:      stringField(row, "Id"),
			Name:    stringField(row, "Name"),
			RepTier: stringField(row, fields.RepTier),
			Status:  stringField(row, fields.Status),
		})
	}
	return out, nil
}

// ListOrders returns activated orders effective on or after since. A zero
// since returns the full history.
func ListOrders(ctx context.Context, c Client, since time.Time) ([]Order, error) {
	soql := fmt.Sprintf("SELECT %s FROM Order WHERE Status = '%s'",
		strings.Join(orderFields, ", "), escapeSoql("Activated"))
	if !since.IsZero() {
		soql += " AND EffectiveDate >= " + since.Format("2006-01-02")
	}
	soql += " ORDER BY EffectiveDate"

	var orders []Order
	if err := c.Query(ctx, soql, &orders); err != nil {
		return nil, eris.Wrap(err, "sf: list orders")
	}
	return orders, nil
}

func stringField(row map[string]any, key string) string {
	switch v := row[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// escapeSoql escapes single quotes in SOQL string literals to prevent injection.
func escapeSoql(s string) string {
	return strings.ReplaceAll(s, "'", "\\'")
}
