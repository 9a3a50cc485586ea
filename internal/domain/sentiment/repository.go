package sentiment

import "context"

// Provider fetches the current news sentiment
type Provider interface {
	Summary(ctx context.Context) (Summary, error)
}
