package iap

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPlayToken = "abcdefghijklmnopqrstuvwxyz0123456789-long-play-token"

func newTestGoogleVerifier(server *httptest.Server) *GoogleVerifier {
	return &GoogleVerifier{
		httpClient:  server.Client(),
		packageName: "com.linguaexchange.app",
		baseURL:     server.URL,
		resultCache: gocache.New(5*time.Minute, 10*time.Minute),
	}
}

func TestVerifyPlaySubscription(t *testing.T) {
	paymentReceived := int64(1)
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		assert.Contains(t, r.URL.Path, "/purchases/subscriptions/vip_monthly/tokens/")
		json.NewEncoder(w).Encode(googleSubscriptionPurchase{
			OrderId:          "GPA.1234",
			StartTimeMillis:  "1704892800000",
			ExpiryTimeMillis: strconv.FormatInt(time.Now().Add(30*24*time.Hour).UnixMilli(), 10),
			AutoRenewing:     true,
			PaymentState:     &paymentReceived,
		})
	}))
	defer server.Close()

	v := newTestGoogleVerifier(server)
	p, err := v.Verify(context.Background(), testPlayToken, Hint{ProductID: "vip_monthly"})
	require.NoError(t, err)

	assert.Equal(t, PlatformAndroid, p.Platform)
	assert.Equal(t, "vip_monthly", p.ProductID)
	assert.Equal(t, LedgerKeyForToken(testPlayToken), p.TransactionID)
	require.NotNil(t, p.ExpiresAt)

	// Second verify is served from cache.
	_, err = v.Verify(context.Background(), testPlayToken, Hint{ProductID: "vip_monthly"})
	require.NoError(t, err)
	assert.Equal(t, 1, hits)
}

func TestVerifyPlaySubscriptionPaymentPending(t *testing.T) {
	pending := int64(0)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(googleSubscriptionPurchase{PaymentState: &pending})
	}))
	defer server.Close()

	v := newTestGoogleVerifier(server)
	_, err := v.Verify(context.Background(), testPlayToken, Hint{ProductID: "vip_monthly"})
	assert.Equal(t, FailureBusiness, KindOf(err))
}

func TestVerifyPlaySubscriptionCanceled(t *testing.T) {
	paymentReceived := int64(1)
	userCanceled := int64(0)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(googleSubscriptionPurchase{
			OrderId:          "GPA.1234",
			ExpiryTimeMillis: strconv.FormatInt(time.Now().Add(10*24*time.Hour).UnixMilli(), 10),
			PaymentState:     &paymentReceived,
			CancelReason:     &userCanceled,
		})
	}))
	defer server.Close()

	v := newTestGoogleVerifier(server)
	_, err := v.Verify(context.Background(), testPlayToken, Hint{ProductID: "vip_monthly"})
	assert.Equal(t, FailureBusiness, KindOf(err))
}

func TestVerifyPlayFallsBackToProduct(t *testing.T) {
	purchased := int64(googlePurchaseStatePurchased)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/purchases/subscriptions/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		require.Contains(t, r.URL.Path, "/purchases/products/")
		json.NewEncoder(w).Encode(googleProductPurchase{
			OrderId:            "GPA.5678",
			PurchaseTimeMillis: "1704892800000",
			PurchaseState:      &purchased,
		})
	}))
	defer server.Close()

	v := newTestGoogleVerifier(server)
	p, err := v.Verify(context.Background(), testPlayToken, Hint{ProductID: "vip_lifetime"})
	require.NoError(t, err)

	assert.Equal(t, "vip_lifetime", p.ProductID)
	assert.Nil(t, p.ExpiresAt)
}

func TestVerifyPlayProductCanceled(t *testing.T) {
	canceled := int64(googlePurchaseStateCanceled)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/purchases/subscriptions/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(googleProductPurchase{PurchaseState: &canceled})
	}))
	defer server.Close()

	v := newTestGoogleVerifier(server)
	_, err := v.Verify(context.Background(), testPlayToken, Hint{ProductID: "vip_lifetime"})
	assert.Equal(t, FailureBusiness, KindOf(err))
}

func TestVerifyPlayCredentialsRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	v := newTestGoogleVerifier(server)
	_, err := v.Verify(context.Background(), testPlayToken, Hint{ProductID: "vip_monthly"})
	assert.Equal(t, FailureConfiguration, KindOf(err))
}

func TestVerifyPlayInputValidation(t *testing.T) {
	v, err := NewGoogleVerifier(context.Background(), "com.linguaexchange.app", "")
	require.NoError(t, err)

	// Not configured at all.
	_, err = v.Verify(context.Background(), testPlayToken, Hint{ProductID: "vip_monthly"})
	assert.Equal(t, FailureConfiguration, KindOf(err))

	v.httpClient = http.DefaultClient
	_, err = v.Verify(context.Background(), testPlayToken, Hint{})
	assert.Equal(t, FailureBusiness, KindOf(err))

	_, err = v.Verify(context.Background(), "", Hint{ProductID: "vip_monthly"})
	assert.Equal(t, FailureBusiness, KindOf(err))
}

func TestLedgerKeyForToken(t *testing.T) {
	assert.Len(t, LedgerKeyForToken(testPlayToken), 32)
	assert.Equal(t, testPlayToken[:32], LedgerKeyForToken(testPlayToken))
	assert.Equal(t, "short", LedgerKeyForToken("short"))
}
