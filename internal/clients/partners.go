package clients

import "context"

// Partner is a supplier or customer record.
type Partner struct {
	ID      int64  `json:"id"`
	Code    string `json:"code"`
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// PartnerClient talks to the supplier and customer service.
type PartnerClient struct {
	*restClient
}

// NewPartnerClient constructs a partner client for baseURL.
func NewPartnerClient(baseURL string, policy Policy) *PartnerClient {
	return &PartnerClient{restClient: newRestClient("partners", baseURL, policy)}
}

// Supplier fetches one supplier.
func (c *PartnerClient) Supplier(ctx context.Context, id int64) (Partner, error) {
	return get[Partner](ctx, c.restClient, "/suppliers/{id}", idParam(id))
}

// Customer fetches one customer.
func (c *PartnerClient) Customer(ctx context.Context, id int64) (Partner, error) {
	return get[Partner](ctx, c.restClient, "/customers/{id}", idParam(id))
}
