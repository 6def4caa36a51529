package weather

import (
	"context"
)

// Provider abstracts the weather data source polled once per cycle.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, loc Location, units UnitSystem, lang string) (Snapshot, error)
}
