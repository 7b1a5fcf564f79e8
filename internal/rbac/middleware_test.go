package rbac

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/DQHuy2112/BE-QLKH-sub001/internal/platform/cache"
	"github.com/DQHuy2112/BE-QLKH-sub001/internal/shared"
)

type stubSource struct {
	perms map[int64][]string
	calls int
	err   error
}

func (s *stubSource) Permissions(_ context.Context, userID int64) ([]string, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.perms[userID], nil
}

func newCache(t *testing.T) *cache.JSONCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewJSONCache(client, "rbac", time.Minute)
}

func serve(mw func(http.Handler) http.Handler, actor int64) *httptest.ResponseRecorder {
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	if actor > 0 {
		req = req.WithContext(shared.ContextWithActor(req.Context(), actor))
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestRequireAllChecksEveryPermission(t *testing.T) {
	source := &stubSource{perms: map[int64][]string{
		7: {"Warehouse.Import.Approve", "warehouse.import.view"},
	}}
	m := Middleware{Service: NewService(source, newCache(t))}

	require.Equal(t, http.StatusNoContent, serve(m.RequireAll(shared.PermImportApprove), 7).Code)
	require.Equal(t, http.StatusForbidden, serve(m.RequireAll(shared.PermImportApprove, shared.PermImportConfirm), 7).Code)
	require.Equal(t, http.StatusNoContent, serve(m.RequireAny(shared.PermImportConfirm, shared.PermImportView), 7).Code)
	require.Equal(t, http.StatusForbidden, serve(m.RequireAll(shared.PermImportApprove), 0).Code)
}

func TestEffectivePermissionsAreCached(t *testing.T) {
	source := &stubSource{perms: map[int64][]string{3: {"warehouse.check.view"}}}
	svc := NewService(source, newCache(t))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		perms, err := svc.EffectivePermissions(ctx, 3)
		require.NoError(t, err)
		require.Equal(t, []string{"warehouse.check.view"}, perms)
	}
	require.Equal(t, 1, source.calls)

	require.NoError(t, svc.Invalidate(ctx))
	_, err := svc.EffectivePermissions(ctx, 3)
	require.NoError(t, err)
	require.Equal(t, 2, source.calls)
}

func TestSourceFailureIsInternalError(t *testing.T) {
	m := Middleware{Service: NewService(&stubSource{err: errors.New("users down")}, nil)}
	require.Equal(t, http.StatusInternalServerError, serve(m.RequireAll(shared.PermCheckDelete), 9).Code)
}

func TestDisabledMiddlewarePassesThrough(t *testing.T) {
	m := Middleware{Disabled: true}
	require.Equal(t, http.StatusNoContent, serve(m.RequireAll(shared.PermCheckDelete), 0).Code)
}
