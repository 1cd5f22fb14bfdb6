package ports

import (
	"context"

	"gotriangle/domain/triangle"
)

// TableSource loads one long-format triangle table.
// Load must fail with a *triangle.DataSourceError when the source is missing or unreadable.
type TableSource interface {
	Load(ctx context.Context) (*triangle.Table, error)
	Describe() string
}
