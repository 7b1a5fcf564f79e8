package clients

import (
	"context"
	"strconv"
)

// Product is the catalog view of a product.
type Product struct {
	ID       int64  `json:"id"`
	Code     string `json:"code"`
	Name     string `json:"name"`
	UnitID   int64  `json:"unitId"`
	Quantity int64  `json:"quantity"`
}

// Unit is a unit of measure.
type Unit struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type quantityAdjustment struct {
	Amount int64 `json:"amount"`
}

// CatalogClient talks to the product catalog service.
type CatalogClient struct {
	*restClient
}

// NewCatalogClient constructs a catalog client for baseURL.
func NewCatalogClient(baseURL string, policy Policy) *CatalogClient {
	return &CatalogClient{restClient: newRestClient("catalog", baseURL, policy)}
}

// Product fetches one product.
func (c *CatalogClient) Product(ctx context.Context, id int64) (Product, error) {
	return get[Product](ctx, c.restClient, "/products/{id}", idParam(id))
}

// Unit fetches one unit of measure.
func (c *CatalogClient) Unit(ctx context.Context, id int64) (Unit, error) {
	return get[Unit](ctx, c.restClient, "/units/{id}", idParam(id))
}

// IncreaseQuantity adds amount to the product's quantity of record.
func (c *CatalogClient) IncreaseQuantity(ctx context.Context, productID, amount int64) error {
	return post(ctx, c.restClient, "/products/{id}/quantity/increase", idParam(productID), quantityAdjustment{Amount: amount})
}

// DecreaseQuantity subtracts amount from the product's quantity of record.
func (c *CatalogClient) DecreaseQuantity(ctx context.Context, productID, amount int64) error {
	return post(ctx, c.restClient, "/products/{id}/quantity/decrease", idParam(productID), quantityAdjustment{Amount: amount})
}

func idParam(id int64) map[string]string {
	return map[string]string{"id": strconv.FormatInt(id, 10)}
}
