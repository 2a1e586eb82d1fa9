package duty

import "context"

// Store persists recorded duties. Implementations: store/memory (tests,
// demos) and store/sqlite.
type Store interface {
	SaveDuty(ctx context.Context, d Duty) error
	GetDuty(ctx context.Context, id string) (*Duty, error)
	ListDuties(ctx context.Context) ([]Duty, error)
	DeleteDuty(ctx context.Context, id string) error
}
