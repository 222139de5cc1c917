// Package salesforce provides JWT-authenticated, rate-limited read access to
// Salesforce accounts and orders.
package salesforce

import (
	"context"

	"github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/account-strategy/internal/resilience"
)

// Client defines the Salesforce API operations used by the account source.
type Client interface {
	Query(ctx context.Context, soql string, out any) error
}

// Creds are the JWT bearer credentials for a connected app.
type Creds struct {
	LoginURL  string
	Username  string
	ClientID  string
	RSAPemKey string
}

// ClientOption configures the Salesforce client.
type ClientOption func(*sfClient)

// WithRateLimit sets a per-second rate limit for SF API calls.
// A burst equal to the integer portion of rps is allowed.
func WithRateLimit(rps float64) ClientOption {
	return func(c *sfClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

// WithRetry retries transient query failures such as API limit or 5xx
// responses. Each attempt waits on the rate limiter.
func WithRetry(cfg resilience.RetryConfig) ClientOption {
	return func(c *sfClient) {
		if cfg.OnRetry == nil {
			cfg.OnRetry = resilience.RetryLogger("salesforce", "query")
		}
		c.retry = &cfg
	}
}

// sfClient wraps the go-salesforce/v3 Salesforce struct.
//
// NOTE: go-salesforce/v3 does not accept context.Context, so ctx only bounds
// the rate limiter wait, not the HTTP call itself.
type sfClient struct {
	sf      *salesforce.Salesforce
	limiter *rate.Limiter
	retry   *resilience.RetryConfig
}

// NewClient creates a new Salesforce Client wrapping the given go-salesforce instance.
func NewClient(sf *salesforce.Salesforce, opts ...ClientOption) Client {
	c := &sfClient{sf: sf}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect authenticates with the JWT bearer flow and returns a Client.
func Connect(creds Creds, opts ...ClientOption) (Client, error) {
	if creds.ClientID == "" || creds.Username == "" {
		return nil, eris.New("sf: client id and username are required")
	}
	sf, err := salesforce.Init(salesforce.Creds{
		Domain:         creds.LoginURL,
		Username:       creds.Username,
		ConsumerKey:    creds.ClientID,
		ConsumerRSAPem: creds.RSAPemKey,
	})
	if err != nil {
		return nil, eris.Wrap(err, "sf: init")
	}
	return NewClient(sf, opts...), nil
}

// wait blocks until the rate limiter allows one event, or ctx is cancelled.
func (c *sfClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func (c *sfClient) Query(ctx context.Context, soql string, out any) error {
	if c.retry == nil {
		return c.query(ctx, soql, out)
	}
	return resilience.Do(ctx, *c.retry, func(ctx context.Context) error {
		return c.query(ctx, soql, out)
	})
}

func (c *sfClient) query(ctx context.Context, soql string, out any) error {
	if err := c.wait(ctx); err != nil {
		return eris.Wrap(err, "sf: rate limit")
	}
	if err := c.sf.Query(soql, out); err != nil {
		return eris.Wrap(err, "sf: query")
	}
	return nil
}
