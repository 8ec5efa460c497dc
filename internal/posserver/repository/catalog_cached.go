package repository

import (
	"context"
	"errors"

	"waiter-station/internal/cache"
	"waiter-station/internal/common/logger"
	"waiter-station/internal/domain"
)

const (
	keyTables         = "catalog:tables"
	keyFloors         = "catalog:floors"
	keyProducts       = "catalog:products"
	keyCategories     = "catalog:categories"
	keyPaymentMethods = "catalog:payment_methods"
)

// CachedCatalog is a cache-aside decorator over a Catalog. Table statuses
// change on every order write, so order and payment paths call
// InvalidateTables; the slower-moving catalogs just ride out their TTL.
type CachedCatalog struct {
	inner Catalog
	cache *cache.RedisCache
	lg    *logger.Logger
}

func NewCachedCatalog(inner Catalog, c *cache.RedisCache) *CachedCatalog {
	return &CachedCatalog{inner: inner, cache: c, lg: logger.New("catalog-cache")}
}

func cachedList[T any](cc *CachedCatalog, ctx context.Context, key string,
	load func(context.Context) ([]T, error)) ([]T, error) {

	var out []T
	err := cc.cache.Get(ctx, key, &out)
	if err == nil {
		return out, nil
	}
	if !errors.Is(err, cache.Nil) {
		cc.lg.Error("cache_get", err, map[string]any{"key": key})
	}

	out, err = load(ctx)
	if err != nil {
		return nil, err
	}
	if err := cc.cache.Set(ctx, key, out); err != nil {
		cc.lg.Error("cache_set", err, map[string]any{"key": key})
	}
	return out, nil
}

func (cc *CachedCatalog) Tables(ctx context.Context) ([]domain.Table, error) {
	return cachedList(cc, ctx, keyTables, cc.inner.Tables)
}

func (cc *CachedCatalog) Floors(ctx context.Context) ([]domain.Floor, error) {
	return cachedList(cc, ctx, keyFloors, cc.inner.Floors)
}

func (cc *CachedCatalog) Products(ctx context.Context) ([]domain.Product, error) {
	return cachedList(cc, ctx, keyProducts, cc.inner.Products)
}

func (cc *CachedCatalog) Categories(ctx context.Context) ([]domain.Category, error) {
	return cachedList(cc, ctx, keyCategories, cc.inner.Categories)
}

func (cc *CachedCatalog) PaymentMethods(ctx context.Context) ([]domain.PaymentMethod, error) {
	return cachedList(cc, ctx, keyPaymentMethods, cc.inner.PaymentMethods)
}

func (cc *CachedCatalog) InvalidateTables(ctx context.Context) error {
	return cc.cache.Delete(ctx, keyTables)
}
