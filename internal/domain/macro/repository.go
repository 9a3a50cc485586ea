package macro

import "context"

// Provider returns reference prices used by the macro sub-score
type Provider interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}
