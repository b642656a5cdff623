package flutterwave

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dextasynergyservices/bookprinta-sub000/pkg/config"
	pkgerrors "github.com/dextasynergyservices/bookprinta-sub000/pkg/errors"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/providers"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.FlutterwaveConfig{
		SecretKey:  "FLWSECK_TEST-abc",
		SecretHash: "hash-value",
		BaseURL:    srv.URL,
	}, nil)
}

func TestClient_Available(t *testing.T) {
	assert.True(t, NewClient(config.FlutterwaveConfig{SecretKey: "k", SecretHash: "h"}, nil).Available())
	// Both the key and the webhook hash are required.
	assert.False(t, NewClient(config.FlutterwaveConfig{SecretKey: "k"}, nil).Available())
	assert.False(t, NewClient(config.FlutterwaveConfig{SecretHash: "h"}, nil).Available())
}

func TestClient_Initialize(t *testing.T) {
	var captured paymentRequest
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/payments", r.URL.Path)
		require.Equal(t, "Bearer FLWSECK_TEST-abc", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "success",
			"data":   map[string]any{"link": "https://checkout.flutterwave.com/pay/xyz"},
		})
	}))

	result, err := client.Initialize(context.Background(), providers.InitializeParams{
		Email:     "buyer@example.com",
		Amount:    decimal.RequireFromString("5500.50"),
		Currency:  "NGN",
		Reference: "flw_x_1",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.flutterwave.com/pay/xyz", result.AuthorizationURL)
	assert.Equal(t, "flw_x_1", result.Reference)

	// Flutterwave takes major units as-is.
	assert.True(t, captured.Amount.Equal(decimal.RequireFromString("5500.50")))
	assert.Equal(t, "flw_x_1", captured.TxRef)
	assert.Equal(t, "buyer@example.com", captured.Customer.Email)
}

func TestClient_Verify(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/transactions/verify_by_reference", r.URL.Path)
		require.Equal(t, "flw_x_1", r.URL.Query().Get("tx_ref"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "success",
			"data": map[string]any{
				"status":   "successful",
				"amount":   5500.5,
				"currency": "NGN",
				"customer": map[string]any{"email": "buyer@example.com"},
			},
		})
	}))

	result, err := client.Verify(context.Background(), "flw_x_1")
	require.NoError(t, err)
	assert.True(t, result.Verified)
	assert.Equal(t, "successful", result.Status)
	assert.True(t, result.Amount.Equal(decimal.RequireFromString("5500.5")))
}

func TestClient_Verify_UnknownReference(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  "error",
			"message": "No transaction was found for this id",
		})
	}))

	_, err := client.Verify(context.Background(), "flw_missing")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestClient_VerifyWebhookSignature(t *testing.T) {
	client := NewClient(config.FlutterwaveConfig{SecretKey: "k", SecretHash: "hash-value"}, nil)

	assert.True(t, client.VerifyWebhookSignature(nil, "hash-value"))
	assert.False(t, client.VerifyWebhookSignature(nil, "other"))
	assert.False(t, client.VerifyWebhookSignature(nil, ""))
}

func TestClient_RecognizesReference(t *testing.T) {
	client := NewClient(config.FlutterwaveConfig{}, nil)
	assert.True(t, client.RecognizesReference("flw_m1abc_0001"))
	assert.False(t, client.RecognizesReference("ps_m1abc_0001"))
}
