package rbac

import (
	"context"
	"strconv"
	"strings"

	"github.com/DQHuy2112/BE-QLKH-sub001/internal/platform/cache"
	"github.com/DQHuy2112/BE-QLKH-sub001/internal/shared"
)

// PermissionSource lists a user's effective permissions.
type PermissionSource interface {
	Permissions(ctx context.Context, userID int64) ([]string, error)
}

// Service resolves effective permissions through the user service, cached in
// Redis per user.
type Service struct {
	source PermissionSource
	cache  *cache.JSONCache
}

// NewService constructs a Service. A nil cache disables caching.
func NewService(source PermissionSource, c *cache.JSONCache) *Service {
	return &Service{source: source, cache: c}
}

// EffectivePermissions returns deduplicated, lower-cased permission names for a user.
func (s *Service) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	key, err := s.cache.BuildKey(ctx, "user", strconv.FormatInt(userID, 10))
	if err != nil {
		return nil, err
	}
	var perms []string
	err = s.cache.FetchJSON(ctx, key, &perms, func(ctx context.Context) (any, error) {
		granted, err := s.source.Permissions(ctx, userID)
		if err != nil {
			return nil, err
		}
		return normalizePermissions(granted), nil
	})
	if err != nil {
		return nil, err
	}
	return perms, nil
}

// Describe returns the actor's granted permissions next to the known set.
func (s *Service) Describe(ctx context.Context, userID int64) (PermissionSet, error) {
	granted, err := s.EffectivePermissions(ctx, userID)
	if err != nil {
		return PermissionSet{}, err
	}
	known := shared.WarehouseScopes()
	filtered := make([]string, 0, len(granted))
	for _, p := range granted {
		if strings.HasPrefix(p, "warehouse.") {
			filtered = append(filtered, p)
		}
	}
	return PermissionSet{UserID: userID, Granted: filtered, Known: known}, nil
}

// Invalidate drops every cached permission list.
func (s *Service) Invalidate(ctx context.Context) error {
	_, err := s.cache.Bump(ctx)
	return err
}
