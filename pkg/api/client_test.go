package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "test-token", 5*time.Second, zap.NewNop())
}

func TestListServices(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/services", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("active"))
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":1,"name":"3D-печать по модели"},{"id":2,"name":"Моделирование и печать"}]`))
	})

	services, err := client.ListServices(context.Background())
	require.NoError(t, err)
	require.Len(t, services, 2)
	assert.Equal(t, int64(1), services[0].ID)
	assert.Equal(t, "3D-печать по модели", services[0].Name)
}

func TestListServices_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`[{"id":1,"name":"Печать"}]`))
	})

	services, err := client.ListServices(context.Background())
	require.NoError(t, err)
	assert.Len(t, services, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestListServices_ClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.ListServices(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load(), "4xx is not retried")
}

func TestUploadFile(t *testing.T) {
	payload := []byte("solid cube")
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/files", r.URL.Path)

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "cube.stl", header.Filename)

		got, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, payload, got)

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"token":"f-abc123","size_bytes":10}`))
	})

	result, err := client.UploadFile(context.Background(), payload, "cube.stl")
	require.NoError(t, err)
	assert.Equal(t, "f-abc123", result.Token)
	assert.Equal(t, int64(10), result.SizeBytes)
}

func TestUploadFile_ServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.UploadFile(context.Background(), []byte("x"), "cube.stl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestCreateOrder(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/orders", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var req map[string]any
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "Анна Каренина", req["customer_name"])
		assert.Equal(t, "TELEGRAM", req["source"])
		assert.NotContains(t, string(body), "customer_phone", "empty phone is omitted")

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":42}`))
	})

	created, err := client.CreateOrder(context.Background(), OrderRequest{
		CustomerName:  "Анна Каренина",
		CustomerEmail: "anna@example.com",
		ServiceID:     1,
		Source:        "TELEGRAM",
		Specifications: map[string]any{
			"material": "pla",
		},
		Files: []FileInfo{{Filename: "cube.stl", Size: 10, Token: "f-abc123"}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), created.ID)
}

func TestCreateOrder_EnvelopeResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":{"id":77}}`))
	})

	created, err := client.CreateOrder(context.Background(), OrderRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(77), created.ID)
}

func TestCreateOrder_ServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail":"service not found"}`))
	})

	_, err := client.CreateOrder(context.Background(), OrderRequest{ServiceID: 999})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
}
