package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBankServer(t *testing.T, operations []Operation) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc(authLoginPath, func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(refreshCookieName)
		if err != nil || cookie.Value != "refresh-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: sessionCookieName, Value: "session-token"})
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc(clientOperationsPath, func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookieName)
		if err != nil || cookie.Value != "session-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		var reqBody operationsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))
		assert.Equal(t, operationsPerPage, reqBody.PerPage)
		assert.Equal(t, effectCredit, reqBody.Filter.Effect)

		json.NewEncoder(w).Encode(operationsResponse{Items: operations})
	})

	return httptest.NewServer(mux)
}

func TestHasPayment(t *testing.T) {
	now := time.Now().UTC()
	operations := []Operation{
		{ID: "1", Status: "success", Time: now, AccountAmount: 90042},
		{ID: "2", Status: "success", Time: now.Add(-time.Hour), AccountAmount: 50023},
		{ID: "3", Status: "pending", Time: now, AccountAmount: 12300},
	}

	server := newBankServer(t, operations)
	defer server.Close()

	bank := NewCli(server.URL, "1593", "refresh-token", 5)
	ctx := context.Background()
	require.NoError(t, bank.Login(ctx))

	notBefore := now.Add(-10 * time.Minute)

	tests := []struct {
		name   string
		amount string
		want   bool
	}{
		{"exact match", "900.42", true},
		{"off by a kopeck", "900.43", false},
		{"match is older than the order", "500.23", false},
		{"non-success status is ignored", "123.00", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := bank.HasPayment(ctx, decimal.RequireFromString(tt.amount), notBefore)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHasPaymentBoundaryTimestamp(t *testing.T) {
	at := time.Date(2024, 5, 26, 12, 0, 0, 0, time.UTC)
	server := newBankServer(t, []Operation{
		{ID: "1", Status: "success", Time: at, AccountAmount: 90042},
	})
	defer server.Close()

	bank := NewCli(server.URL, "1593", "refresh-token", 5)
	ctx := context.Background()
	require.NoError(t, bank.Login(ctx))

	// timestamp equal to notBefore does not count
	got, err := bank.HasPayment(ctx, decimal.RequireFromString("900.42"), at)
	require.NoError(t, err)
	assert.False(t, got)

	got, err = bank.HasPayment(ctx, decimal.RequireFromString("900.42"), at.Add(-time.Second))
	require.NoError(t, err)
	assert.True(t, got)
}

func TestLoginRejected(t *testing.T) {
	server := newBankServer(t, nil)
	defer server.Close()

	bank := NewCli(server.URL, "1593", "wrong-token", 5)
	err := bank.Login(context.Background())
	assert.ErrorIs(t, err, ErrUnauthenticated)

	// without a session every check degrades to "no match", with a
	// distinguishable error for the operators
	got, err := bank.HasPayment(context.Background(), decimal.RequireFromString("900.42"), time.Now())
	assert.False(t, got)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestHasPaymentSessionExpired(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(authLoginPath, func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: sessionCookieName, Value: "stale"})
	})
	mux.HandleFunc(clientOperationsPath, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	bank := NewCli(server.URL, "1593", "refresh-token", 5)
	ctx := context.Background()
	require.NoError(t, bank.Login(ctx))

	got, err := bank.HasPayment(ctx, decimal.RequireFromString("900.42"), time.Now().Add(-time.Minute))
	assert.False(t, got)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	// the dropped session is not silently re-established
	got, err = bank.HasPayment(ctx, decimal.RequireFromString("900.42"), time.Now().Add(-time.Minute))
	assert.False(t, got)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestHasPaymentServerError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(authLoginPath, func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: sessionCookieName, Value: "session-token"})
	})
	mux.HandleFunc(clientOperationsPath, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	bank := NewCli(server.URL, "1593", "refresh-token", 5)
	ctx := context.Background()
	require.NoError(t, bank.Login(ctx))

	got, err := bank.HasPayment(ctx, decimal.RequireFromString("900.42"), time.Now().Add(-time.Minute))
	assert.False(t, got)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnauthenticated)
}
