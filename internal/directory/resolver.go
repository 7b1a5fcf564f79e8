// Package directory resolves display names of collaborator records, caching
// them in Redis so document reads do not hit every service on every request.
package directory

import (
	"context"
	"strconv"

	"github.com/DQHuy2112/BE-QLKH-sub001/internal/clients"
	"github.com/DQHuy2112/BE-QLKH-sub001/internal/platform/cache"
)

// Catalog is the subset of the catalog client used for names.
type Catalog interface {
	Product(ctx context.Context, id int64) (clients.Product, error)
	Unit(ctx context.Context, id int64) (clients.Unit, error)
}

// Stores is the subset of the store client used for names.
type Stores interface {
	Store(ctx context.Context, id int64) (clients.Store, error)
}

// Partners is the subset of the partner client used for names.
type Partners interface {
	Supplier(ctx context.Context, id int64) (clients.Partner, error)
	Customer(ctx context.Context, id int64) (clients.Partner, error)
}

// ProductInfo carries the names rendered on a document line.
type ProductInfo struct {
	Name     string `json:"name"`
	UnitName string `json:"unitName"`
}

// Resolver looks up names through the collaborator clients.
type Resolver struct {
	catalog  Catalog
	stores   Stores
	partners Partners
	cache    *cache.JSONCache
}

// NewResolver constructs a Resolver. A nil cache disables caching.
func NewResolver(catalog Catalog, stores Stores, partners Partners, c *cache.JSONCache) *Resolver {
	return &Resolver{catalog: catalog, stores: stores, partners: partners, cache: c}
}

func (r *Resolver) fetch(ctx context.Context, kind string, id int64, dest any, loader func(context.Context) (any, error)) error {
	key, err := r.cache.BuildKey(ctx, kind, strconv.FormatInt(id, 10))
	if err != nil {
		// cache unavailable: go straight to the service
		var uncached *cache.JSONCache
		return uncached.FetchJSON(ctx, key, dest, loader)
	}
	return r.cache.FetchJSON(ctx, key, dest, loader)
}

// StoreName returns the store's display name.
func (r *Resolver) StoreName(ctx context.Context, id int64) (string, error) {
	var name string
	err := r.fetch(ctx, "store", id, &name, func(ctx context.Context) (any, error) {
		store, err := r.stores.Store(ctx, id)
		return store.Name, err
	})
	return name, err
}

// SupplierName returns the supplier's display name.
func (r *Resolver) SupplierName(ctx context.Context, id int64) (string, error) {
	var name string
	err := r.fetch(ctx, "supplier", id, &name, func(ctx context.Context) (any, error) {
		supplier, err := r.partners.Supplier(ctx, id)
		return supplier.Name, err
	})
	return name, err
}

// CustomerName returns the customer's display name.
func (r *Resolver) CustomerName(ctx context.Context, id int64) (string, error) {
	var name string
	err := r.fetch(ctx, "customer", id, &name, func(ctx context.Context) (any, error) {
		customer, err := r.partners.Customer(ctx, id)
		return customer.Name, err
	})
	return name, err
}

// ProductName returns the product name and its unit name. A missing unit
// leaves the unit name empty rather than failing the product.
func (r *Resolver) ProductName(ctx context.Context, id int64) (string, string, error) {
	var info ProductInfo
	err := r.fetch(ctx, "product", id, &info, func(ctx context.Context) (any, error) {
		product, err := r.catalog.Product(ctx, id)
		if err != nil {
			return nil, err
		}
		out := ProductInfo{Name: product.Name}
		if product.UnitID > 0 {
			if unit, err := r.catalog.Unit(ctx, product.UnitID); err == nil {
				out.UnitName = unit.Name
			}
		}
		return out, nil
	})
	return info.Name, info.UnitName, err
}

// Invalidate drops every cached name.
func (r *Resolver) Invalidate(ctx context.Context) error {
	_, err := r.cache.Bump(ctx)
	return err
}
