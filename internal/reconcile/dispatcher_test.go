package reconcile

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/DQHuy2112/BE-QLKH-sub001/internal/clients"
)

type adjustCall struct {
	op        string
	productID int64
	amount    int64
}

type stubAdjuster struct {
	mu    sync.Mutex
	calls []adjustCall
	fail  map[int64]error
}

func (s *stubAdjuster) record(op string, productID, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, adjustCall{op, productID, amount})
	return s.fail[productID]
}

func (s *stubAdjuster) IncreaseQuantity(_ context.Context, productID, amount int64) error {
	return s.record("increase", productID, amount)
}

func (s *stubAdjuster) DecreaseQuantity(_ context.Context, productID, amount int64) error {
	return s.record("decrease", productID, amount)
}

func TestApplyDirections(t *testing.T) {
	adj := &stubAdjuster{}
	d := NewDispatcher(adj, clients.Policy{Timeout: time.Second}, nil, nil)
	ref := Ref{Family: "CHECK", ID: 1}

	warnings := d.Apply(context.Background(), ref, []Line{{1, 10}}, DirectionIncrease)
	require.Empty(t, warnings)
	warnings = d.Apply(context.Background(), ref, []Line{{2, 4}}, DirectionDecrease)
	require.Empty(t, warnings)
	warnings = d.Apply(context.Background(), ref, []Line{{3, -3}, {4, 0}, {5, 6}}, DirectionDelta)
	require.Empty(t, warnings)

	require.Equal(t, []adjustCall{
		{"increase", 1, 10},
		{"decrease", 2, 4},
		{"decrease", 3, 3},
		{"increase", 5, 6},
	}, adj.calls)
}

func TestApplyContinuesAfterFailureAndKeepsOrder(t *testing.T) {
	adj := &stubAdjuster{fail: map[int64]error{
		2: errors.New("catalog: status 500"),
		4: errors.New("catalog: status 422: insufficient stock"),
	}}
	registry := prometheus.NewRegistry()
	d := NewDispatcher(adj, clients.Policy{Timeout: time.Second}, nil, registry)

	lines := []Line{{1, 1}, {2, 2}, {3, 3}, {4, 4}}
	warnings := d.Apply(context.Background(), Ref{Family: "EXPORT", ID: 9}, lines, DirectionDecrease)

	require.Len(t, adj.calls, 4)
	require.Len(t, warnings, 2)
	require.Equal(t, int64(2), warnings[0].ProductID)
	require.Equal(t, int64(4), warnings[1].ProductID)
	require.Contains(t, warnings[1].Message, "product 4")
	require.Contains(t, warnings[1].Message, "insufficient stock")

	require.Equal(t, float64(2), testutil.ToFloat64(d.calls.WithLabelValues("DECREASE", "success")))
	require.Equal(t, float64(2), testutil.ToFloat64(d.calls.WithLabelValues("DECREASE", "failure")))
}

func TestApplyTimeoutBecomesWarning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/products/1/") {
			time.Sleep(300 * time.Millisecond)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	policy := clients.Policy{Timeout: 50 * time.Millisecond}
	catalog := clients.NewCatalogClient(srv.URL, policy)
	d := NewDispatcher(catalog, policy, nil, nil)

	warnings := d.Apply(context.Background(), Ref{Family: "IMPORT", ID: 3}, []Line{{1, 10}, {2, 5}}, DirectionIncrease)
	require.Len(t, warnings, 1)
	require.Equal(t, int64(1), warnings[0].ProductID)
	require.Contains(t, warnings[0].Message, "product 1")
	require.Contains(t, warnings[0].Message, "timed out")
}
