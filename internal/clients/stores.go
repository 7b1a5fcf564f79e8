package clients

import "context"

// Store is a warehouse location.
type Store struct {
	ID      int64  `json:"id"`
	Code    string `json:"code"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

// StoreClient talks to the store service.
type StoreClient struct {
	*restClient
}

// NewStoreClient constructs a store client for baseURL.
func NewStoreClient(baseURL string, policy Policy) *StoreClient {
	return &StoreClient{restClient: newRestClient("stores", baseURL, policy)}
}

// Store fetches one store.
func (c *StoreClient) Store(ctx context.Context, id int64) (Store, error) {
	return get[Store](ctx, c.restClient, "/stores/{id}", idParam(id))
}
