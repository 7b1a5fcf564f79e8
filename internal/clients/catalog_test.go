package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DQHuy2112/BE-QLKH-sub001/internal/shared"
)

func TestCatalogIncreaseQuantityPostsAmount(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.Method + " " + r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"message":null,"data":null}`))
	}))
	defer srv.Close()

	client := NewCatalogClient(srv.URL, Policy{Timeout: time.Second})
	require.NoError(t, client.IncreaseQuantity(context.Background(), 1, 10))
	require.Equal(t, "POST /products/1/quantity/increase", gotPath)
	require.Equal(t, float64(10), gotBody["amount"])

	require.NoError(t, client.DecreaseQuantity(context.Background(), 2, 3))
	require.Equal(t, "POST /products/2/quantity/decrease", gotPath)
	require.Equal(t, float64(3), gotBody["amount"])
}

func TestCatalogProductDecodesEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/products/7":
			_, _ = w.Write([]byte(`{"success":true,"data":{"id":7,"name":"Rice 5kg","unitId":3}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"success":false,"message":"not found"}`))
		}
	}))
	defer srv.Close()

	client := NewCatalogClient(srv.URL, Policy{Timeout: time.Second})
	product, err := client.Product(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, "Rice 5kg", product.Name)
	require.Equal(t, int64(3), product.UnitID)

	_, err = client.Product(context.Background(), 8)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCatalogSurfacesFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/products/1/quantity/decrease":
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"success":false,"message":"insufficient stock"}`))
		case "/products/2/quantity/decrease":
			_, _ = w.Write([]byte(`{"success":false,"message":"locked"}`))
		case "/products/3/quantity/decrease":
			time.Sleep(200 * time.Millisecond)
			_, _ = w.Write([]byte(`{"success":true}`))
		}
	}))
	defer srv.Close()

	client := NewCatalogClient(srv.URL, Policy{Timeout: 50 * time.Millisecond})
	ctx := context.Background()

	err := client.DecreaseQuantity(ctx, 1, 5)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusUnprocessableEntity, statusErr.Status)
	require.Contains(t, err.Error(), "insufficient stock")

	err = client.DecreaseQuantity(ctx, 2, 5)
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, "locked", statusErr.Message)

	err = client.DecreaseQuantity(ctx, 3, 5)
	require.Error(t, err)
	require.True(t, IsTimeout(err))
}

func TestUserPermissions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/users/9/permissions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":["warehouse.import.approve"]}`))
	}))
	defer srv.Close()

	perms, err := NewUserClient(srv.URL, Policy{}).Permissions(context.Background(), 9)
	require.NoError(t, err)
	require.Equal(t, []string{"warehouse.import.approve"}, perms)
}

func TestPolicyCallAppliesDefaultTimeout(t *testing.T) {
	var deadline time.Time
	err := Policy{}.Call(context.Background(), func(ctx context.Context) error {
		deadline, _ = ctx.Deadline()
		return nil
	})
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(DefaultTimeout), deadline, time.Second)
}
