package datasource

import (
	"context"
	"fmt"
	"sync"

	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/domain"
	"github.com/google/uuid"
)

// Router manages data source adapters and connection pooling. Pool entries
// are keyed by connection ID; an unhealthy entry is closed and recreated on
// the next request.
type Router struct {
	factories map[domain.DatabaseType]AdapterFactory
	pool      map[string]Adapter
	mu        sync.RWMutex
}

// NewRouter creates a new adapter router
func NewRouter() *Router {
	return &Router{
		factories: make(map[domain.DatabaseType]AdapterFactory),
		pool:      make(map[string]Adapter),
	}
}

// RegisterAdapter registers an adapter factory for a database type
func (r *Router) RegisterAdapter(dbType domain.DatabaseType, factory AdapterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[dbType] = factory
}

// SupportedDatabases returns list of supported database types
func (r *Router) SupportedDatabases() []domain.DatabaseType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]domain.DatabaseType, 0, len(r.factories))
	for dbType := range r.factories {
		types = append(types, dbType)
	}
	return types
}

// GetAdapter returns an adapter for the given connection, creating if needed
func (r *Router) GetAdapter(ctx context.Context, connectionID uuid.UUID, dbType domain.DatabaseType, config ConnectionConfig) (Adapter, error) {
	connKey := connectionID.String()

	// Check for existing healthy connection
	r.mu.RLock()
	if adapter, ok := r.pool[connKey]; ok {
		r.mu.RUnlock()
		if err := adapter.HealthCheck(ctx); err == nil {
			return adapter, nil
		}
		// Connection unhealthy, will recreate
		r.mu.Lock()
		adapter.Close()
		delete(r.pool, connKey)
		r.mu.Unlock()
	} else {
		r.mu.RUnlock()
	}

	// Create new connection
	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if adapter, ok := r.pool[connKey]; ok {
		if err := adapter.HealthCheck(ctx); err == nil {
			return adapter, nil
		}
		adapter.Close()
		delete(r.pool, connKey)
	}

	factory, ok := r.factories[dbType]
	if !ok {
		return nil, fmt.Errorf("unsupported database type: %s", dbType)
	}

	adapter := factory()
	if err := adapter.Connect(ctx, config); err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	r.pool[connKey] = adapter
	return adapter, nil
}

// NewAdapter creates an unpooled adapter for dbType. The caller owns the
// returned adapter's lifecycle; connection tests use this to probe
// credentials without touching the shared pool.
func (r *Router) NewAdapter(dbType domain.DatabaseType) (Adapter, error) {
	r.mu.RLock()
	factory, ok := r.factories[dbType]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unsupported database type: %s", dbType)
	}
	return factory(), nil
}

// CloseConnection closes a specific connection
func (r *Router) CloseConnection(connectionID uuid.UUID) error {
	connKey := connectionID.String()

	r.mu.Lock()
	defer r.mu.Unlock()

	if adapter, ok := r.pool[connKey]; ok {
		err := adapter.Close()
		delete(r.pool, connKey)
		return err
	}

	return nil
}

// CloseAll closes all connections
func (r *Router) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for connKey, adapter := range r.pool {
		adapter.Close()
		delete(r.pool, connKey)
	}
}

// PoolSize returns the current number of pooled connections
func (r *Router) PoolSize() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pool)
}
