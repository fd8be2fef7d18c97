package asset

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/models"
	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/repository"
	"github.com/google/uuid"
)

const defaultTTL = 5 * time.Minute

// Registry resolves asset symbols to immutable descriptors. Assets are
// read-mostly, so lookups are served from a process-wide TTL cache;
// administrative updates must call Invalidate.
type Registry struct {
	store *repository.Store
	ttl   time.Duration

	mu       sync.RWMutex
	bySymbol map[string]cacheEntry
	byID     map[uuid.UUID]cacheEntry
}

type cacheEntry struct {
	asset     models.Asset
	expiresAt time.Time
}

func NewRegistry(store *repository.Store, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Registry{
		store:    store,
		ttl:      ttl,
		bySymbol: make(map[string]cacheEntry),
		byID:     make(map[uuid.UUID]cacheEntry),
	}
}

// Get resolves a symbol to its asset descriptor. Returns models.ErrNotFound
// for unknown or disabled symbols.
func (r *Registry) Get(ctx context.Context, symbol string) (models.Asset, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	r.mu.RLock()
	entry, ok := r.bySymbol[symbol]
	r.mu.RUnlock()
	if ok && time.Now().Before(entry.expiresAt) {
		return entry.asset, nil
	}

	asset, err := r.store.Queries().GetAssetBySymbol(ctx, symbol)
	if err != nil {
		return models.Asset{}, err
	}
	if !asset.Enabled {
		return models.Asset{}, models.ErrNotFound
	}
	r.cache(asset)
	return asset, nil
}

// GetByID resolves an asset id, typically from a wallet row.
func (r *Registry) GetByID(ctx context.Context, id uuid.UUID) (models.Asset, error) {
	r.mu.RLock()
	entry, ok := r.byID[id]
	r.mu.RUnlock()
	if ok && time.Now().Before(entry.expiresAt) {
		return entry.asset, nil
	}

	asset, err := r.store.Queries().GetAsset(ctx, id)
	if err != nil {
		return models.Asset{}, err
	}
	r.cache(asset)
	return asset, nil
}

// Create registers a new asset. Administrative operation; invalidates the
// cache entry for the symbol.
func (r *Registry) Create(ctx context.Context, symbol string, precision int32) (models.Asset, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" || precision < 0 || precision > 18 {
		return models.Asset{}, fmt.Errorf("invalid asset definition %q/%d: %w", symbol, precision, models.ErrInvalidAmount)
	}
	asset := models.Asset{
		ID:        uuid.New(),
		Symbol:    symbol,
		Precision: precision,
		Enabled:   true,
	}
	if err := r.store.Queries().CreateAsset(ctx, &asset); err != nil {
		return models.Asset{}, err
	}
	r.Invalidate(symbol)
	return asset, nil
}

// List returns all registered assets, bypassing the cache.
func (r *Registry) List(ctx context.Context) ([]models.Asset, error) {
	return r.store.Queries().ListAssets(ctx)
}

// Invalidate drops the cached entry for a symbol after an administrative
// update.
func (r *Registry) Invalidate(symbol string) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	r.mu.Lock()
	if entry, ok := r.bySymbol[symbol]; ok {
		delete(r.byID, entry.asset.ID)
	}
	delete(r.bySymbol, symbol)
	r.mu.Unlock()
}

func (r *Registry) cache(asset models.Asset) {
	entry := cacheEntry{asset: asset, expiresAt: time.Now().Add(r.ttl)}
	r.mu.Lock()
	r.bySymbol[asset.Symbol] = entry
	r.byID[asset.ID] = entry
	r.mu.Unlock()
}
