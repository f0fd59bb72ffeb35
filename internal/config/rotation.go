package config

import (
	"context"
	"fmt"

	"github.com/abelbrown/dealfeed/internal/rotation"
	"github.com/abelbrown/dealfeed/internal/store"
)

// OpenRotation connects the configured rotation backend. The returned close
// func is never nil.
func (c *Config) OpenRotation(ctx context.Context) (rotation.Store, func(), error) {
	noop := func() {}

	switch c.RotationBackend {
	case BackendFile:
		return rotation.NewFileStore(c.RotationPath), noop, nil

	case BackendSQLite:
		s, err := store.OpenSQLite(ctx, c.SQLitePath, c.Scope())
		if err != nil {
			return nil, noop, fmt.Errorf("open sqlite rotation store: %w", err)
		}
		return s, func() { s.Close() }, nil

	case BackendRedis:
		client, err := c.Redis.New(ctx)
		if err != nil {
			return nil, noop, fmt.Errorf("connect redis: %w", err)
		}
		return store.NewRedis(client, c.RotationKey+":"+c.Scope()), func() { client.Close() }, nil

	case BackendPostgres:
		pg, err := store.ConnectPostgres(ctx, c.DatabaseURL, c.Scope())
		if err != nil {
			return nil, noop, fmt.Errorf("connect postgres: %w", err)
		}
		return pg, pg.Close, nil
	}
	return nil, noop, &ValidationError{Field: "ROTATION_BACKEND", Reason: fmt.Sprintf("unknown backend %q", c.RotationBackend)}
}
