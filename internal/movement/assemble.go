package movement

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/DQHuy2112/BE-QLKH-sub001/internal/reconcile"
)

const lookupConcurrency = 8

// ImportLineView is an import line with display names and its value.
type ImportLineView struct {
	ImportLine
	ProductName string          `json:"productName"`
	UnitName    string          `json:"unitName,omitempty"`
	TotalValue  decimal.Decimal `json:"totalValue"`
}

// ImportView is the read model of an import.
type ImportView struct {
	Import
	StoreName       string              `json:"storeName"`
	SupplierName    string              `json:"supplierName,omitempty"`
	SourceStoreName string              `json:"sourceStoreName,omitempty"`
	TotalValue      decimal.Decimal     `json:"totalValue"`
	Lines           []ImportLineView    `json:"lines"`
	Warnings        []reconcile.Warning `json:"warnings"`
}

// ExportLineView is an export line with display names and its value.
type ExportLineView struct {
	ExportLine
	ProductName string          `json:"productName"`
	UnitName    string          `json:"unitName,omitempty"`
	TotalValue  decimal.Decimal `json:"totalValue"`
}

// ExportView is the read model of an export.
type ExportView struct {
	Export
	StoreName           string              `json:"storeName"`
	CustomerDisplayName string              `json:"customerDisplayName"`
	TotalValue          decimal.Decimal     `json:"totalValue"`
	Lines               []ExportLineView    `json:"lines"`
	Warnings            []reconcile.Warning `json:"warnings"`
}

// CheckLineView is a counted line with its derived difference.
type CheckLineView struct {
	CheckLine
	ProductName        string          `json:"productName"`
	UnitName           string          `json:"unitName,omitempty"`
	DifferenceQuantity int64           `json:"differenceQuantity"`
	TotalValue         decimal.Decimal `json:"totalValue"`
}

// CheckView is the read model of an inventory check.
type CheckView struct {
	Check
	StoreName            string              `json:"storeName"`
	TotalDifferenceValue decimal.Decimal     `json:"totalDifferenceValue"`
	Lines                []CheckLineView     `json:"lines"`
	Warnings             []reconcile.Warning `json:"warnings"`
}

// Assembler joins documents with collaborator display names. Lookups that
// fail degrade to placeholders; rendering never fails.
type Assembler struct {
	resolver Resolver
	logger   *slog.Logger
}

// NewAssembler constructs an Assembler. A nil resolver renders placeholders.
func NewAssembler(resolver Resolver, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{resolver: resolver, logger: logger}
}

type productName struct {
	name string
	unit string
}

// nameSet collects ids to resolve and stores successful lookups.
type nameSet struct {
	mu        sync.Mutex
	stores    map[int64]string
	suppliers map[int64]string
	customers map[int64]string
	products  map[int64]productName
}

type nameRequest struct {
	stores    map[int64]struct{}
	suppliers map[int64]struct{}
	customers map[int64]struct{}
	products  map[int64]struct{}
}

func newNameRequest() nameRequest {
	return nameRequest{
		stores:    map[int64]struct{}{},
		suppliers: map[int64]struct{}{},
		customers: map[int64]struct{}{},
		products:  map[int64]struct{}{},
	}
}

func (a *Assembler) resolve(ctx context.Context, req nameRequest) *nameSet {
	names := &nameSet{
		stores:    map[int64]string{},
		suppliers: map[int64]string{},
		customers: map[int64]string{},
		products:  map[int64]productName{},
	}
	if a.resolver == nil {
		return names
	}

	var g errgroup.Group
	g.SetLimit(lookupConcurrency)
	lookup := func(kind string, ids map[int64]struct{}, fn func(ctx context.Context, id int64) error) {
		for id := range ids {
			g.Go(func() error {
				if err := fn(ctx, id); err != nil {
					a.logger.Warn("name lookup failed",
						slog.String("kind", kind), slog.Int64("id", id), slog.Any("error", err))
				}
				return nil
			})
		}
	}
	lookup("store", req.stores, func(ctx context.Context, id int64) error {
		name, err := a.resolver.StoreName(ctx, id)
		if err == nil {
			names.set(names.stores, id, name)
		}
		return err
	})
	lookup("supplier", req.suppliers, func(ctx context.Context, id int64) error {
		name, err := a.resolver.SupplierName(ctx, id)
		if err == nil {
			names.set(names.suppliers, id, name)
		}
		return err
	})
	lookup("customer", req.customers, func(ctx context.Context, id int64) error {
		name, err := a.resolver.CustomerName(ctx, id)
		if err == nil {
			names.set(names.customers, id, name)
		}
		return err
	})
	lookup("product", req.products, func(ctx context.Context, id int64) error {
		name, unit, err := a.resolver.ProductName(ctx, id)
		if err == nil {
			names.mu.Lock()
			names.products[id] = productName{name: name, unit: unit}
			names.mu.Unlock()
		}
		return err
	})
	_ = g.Wait()
	return names
}

func (n *nameSet) set(m map[int64]string, id int64, name string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	m[id] = name
}

func lookupName(m map[int64]string, id int64, placeholder string) string {
	if name, ok := m[id]; ok && name != "" {
		return name
	}
	return fmt.Sprintf("%s #%d", placeholder, id)
}

func (n *nameSet) product(id int64) productName {
	if p, ok := n.products[id]; ok && p.name != "" {
		return p
	}
	return productName{name: fmt.Sprintf("Product #%d", id)}
}

// Imports renders imports in order.
func (a *Assembler) Imports(ctx context.Context, docs []Import) []ImportView {
	req := newNameRequest()
	for _, d := range docs {
		req.stores[d.StoreID] = struct{}{}
		if d.SupplierID != nil {
			req.suppliers[*d.SupplierID] = struct{}{}
		}
		if d.SourceStoreID != nil {
			req.stores[*d.SourceStoreID] = struct{}{}
		}
		for _, l := range d.Lines {
			req.products[l.ProductID] = struct{}{}
		}
	}
	names := a.resolve(ctx, req)

	views := make([]ImportView, 0, len(docs))
	for _, d := range docs {
		v := ImportView{
			Import:     d,
			StoreName:  lookupName(names.stores, d.StoreID, "Store"),
			TotalValue: d.TotalValue(),
			Lines:      make([]ImportLineView, 0, len(d.Lines)),
			Warnings:   []reconcile.Warning{},
		}
		if d.SupplierID != nil {
			v.SupplierName = lookupName(names.suppliers, *d.SupplierID, "Supplier")
		}
		if d.SourceStoreID != nil {
			v.SourceStoreName = lookupName(names.stores, *d.SourceStoreID, "Store")
		}
		for _, l := range d.Lines {
			p := names.product(l.ProductID)
			v.Lines = append(v.Lines, ImportLineView{
				ImportLine:  l,
				ProductName: p.name,
				UnitName:    p.unit,
				TotalValue:  LineValue(l.Quantity, l.UnitPrice, l.DiscountPercent),
			})
		}
		views = append(views, v)
	}
	return views
}

// Exports renders exports in order. A customer that cannot be resolved falls
// back to the name stored on the document.
func (a *Assembler) Exports(ctx context.Context, docs []Export) []ExportView {
	req := newNameRequest()
	for _, d := range docs {
		req.stores[d.StoreID] = struct{}{}
		req.customers[d.CustomerID] = struct{}{}
		for _, l := range d.Lines {
			req.products[l.ProductID] = struct{}{}
		}
	}
	names := a.resolve(ctx, req)

	views := make([]ExportView, 0, len(docs))
	for _, d := range docs {
		customer, ok := names.customers[d.CustomerID]
		if !ok || customer == "" {
			customer = d.CustomerName
		}
		if customer == "" {
			customer = fmt.Sprintf("Customer #%d", d.CustomerID)
		}
		v := ExportView{
			Export:              d,
			StoreName:           lookupName(names.stores, d.StoreID, "Store"),
			CustomerDisplayName: customer,
			TotalValue:          d.TotalValue(),
			Lines:               make([]ExportLineView, 0, len(d.Lines)),
			Warnings:            []reconcile.Warning{},
		}
		for _, l := range d.Lines {
			p := names.product(l.ProductID)
			v.Lines = append(v.Lines, ExportLineView{
				ExportLine:  l,
				ProductName: p.name,
				UnitName:    p.unit,
				TotalValue:  LineValue(l.Quantity, l.UnitPrice, l.DiscountPercent),
			})
		}
		views = append(views, v)
	}
	return views
}

// Checks renders inventory checks in order.
func (a *Assembler) Checks(ctx context.Context, docs []Check) []CheckView {
	req := newNameRequest()
	for _, d := range docs {
		req.stores[d.StoreID] = struct{}{}
		for _, l := range d.Lines {
			req.products[l.ProductID] = struct{}{}
		}
	}
	names := a.resolve(ctx, req)

	views := make([]CheckView, 0, len(docs))
	for _, d := range docs {
		v := CheckView{
			Check:                d,
			StoreName:            lookupName(names.stores, d.StoreID, "Store"),
			TotalDifferenceValue: d.TotalDifferenceValue(),
			Lines:                make([]CheckLineView, 0, len(d.Lines)),
			Warnings:             []reconcile.Warning{},
		}
		for _, l := range d.Lines {
			p := names.product(l.ProductID)
			v.Lines = append(v.Lines, CheckLineView{
				CheckLine:          l,
				ProductName:        p.name,
				UnitName:           p.unit,
				DifferenceQuantity: l.DifferenceQuantity(),
				TotalValue:         l.TotalValue(),
			})
		}
		views = append(views, v)
	}
	return views
}
