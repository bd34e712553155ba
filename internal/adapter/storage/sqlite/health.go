package sqlite

import "context"

// HealthCheck implements ports.HealthChecker for the SQLite store.
type HealthCheck struct {
	store *Store
}

// NewHealthCheck creates a SQLite health checker.
func NewHealthCheck(store *Store) *HealthCheck {
	return &HealthCheck{store: store}
}

// Ping runs a trivial query against the database file.
func (h *HealthCheck) Ping(ctx context.Context) error {
	var one int
	return h.store.db.QueryRowContext(ctx, "SELECT 1").Scan(&one)
}

// Name returns the dependency name.
func (h *HealthCheck) Name() string {
	return "sqlite"
}
