package clients

import "context"

// UserClient talks to the user and permission service.
type UserClient struct {
	*restClient
}

// NewUserClient constructs a user client for baseURL.
func NewUserClient(baseURL string, policy Policy) *UserClient {
	return &UserClient{restClient: newRestClient("users", baseURL, policy)}
}

// Permissions lists the effective permission names of a user.
func (c *UserClient) Permissions(ctx context.Context, userID int64) ([]string, error) {
	return get[[]string](ctx, c.restClient, "/users/{id}/permissions", idParam(userID))
}
