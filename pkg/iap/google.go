package iap

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/oauth2/google"
)

const (
	androidPublisherScope   = "https://www.googleapis.com/auth/androidpublisher"
	androidPublisherBaseURL = "https://androidpublisher.googleapis.com"

	// purchases.products purchaseState values.
	googlePurchaseStatePurchased = 0
	googlePurchaseStateCanceled  = 1
	googlePurchaseStatePending   = 2
)

// GoogleVerifier validates Play Billing purchase tokens with service-account
// credentials against the Android Publisher API. A token is first tried as a
// subscription; on 404 it is retried as a one-time product, because
// consumable purchases share the same proof shape.
type GoogleVerifier struct {
	httpClient  *http.Client
	packageName string
	baseURL     string
	resultCache *gocache.Cache
}

// NewGoogleVerifier builds the verifier from a service-account JSON key.
// An empty key is allowed at construction; verification then fails with a
// configuration error instead of at boot.
func NewGoogleVerifier(ctx context.Context, packageName, serviceAccountJSON string) (*GoogleVerifier, error) {
	v := &GoogleVerifier{
		packageName: packageName,
		baseURL:     androidPublisherBaseURL,
		resultCache: gocache.New(5*time.Minute, 10*time.Minute),
	}
	if serviceAccountJSON == "" {
		return v, nil
	}

	cfg, err := google.JWTConfigFromJSON([]byte(serviceAccountJSON), androidPublisherScope)
	if err != nil {
		return nil, fmt.Errorf("invalid google service account key: %w", err)
	}
	client := cfg.Client(ctx)
	client.Timeout = 15 * time.Second
	v.httpClient = client
	return v, nil
}

func (v *GoogleVerifier) Platform() string {
	return PlatformAndroid
}

func (v *GoogleVerifier) Verify(ctx context.Context, purchaseToken string, hint Hint) (*VerifiedPurchase, error) {
	if v.httpClient == nil {
		return nil, ConfigurationError("google service account is not configured")
	}
	if hint.ProductID == "" {
		return nil, BusinessError("product id is required for play purchases")
	}
	if purchaseToken == "" {
		return nil, BusinessError("empty purchase token")
	}

	cacheKey := hint.ProductID + ":" + purchaseToken
	if cached, ok := v.resultCache.Get(cacheKey); ok {
		return cached.(*VerifiedPurchase), nil
	}

	purchase, err := v.verifySubscription(ctx, hint.ProductID, purchaseToken)
	if err != nil {
		if KindOf(err) != FailureNotFound {
			return nil, err
		}
		// Not a subscription: the token may belong to a consumable product.
		purchase, err = v.verifyProduct(ctx, hint.ProductID, purchaseToken)
		if err != nil {
			return nil, err
		}
	}

	if purchase.ExpiresAt != nil && purchase.ExpiresAt.Before(time.Now()) {
		return nil, BusinessError("subscription expired")
	}

	v.resultCache.Set(cacheKey, purchase, gocache.DefaultExpiration)
	return purchase, nil
}

type googleSubscriptionPurchase struct {
	OrderId          string `json:"orderId"`
	StartTimeMillis  string `json:"startTimeMillis"`
	ExpiryTimeMillis string `json:"expiryTimeMillis"`
	AutoRenewing     bool   `json:"autoRenewing"`
	PaymentState     *int64 `json:"paymentState"`
	CancelReason     *int64 `json:"cancelReason"`
	Acknowledged     bool   `json:"acknowledgementState"`
}

func (v *GoogleVerifier) verifySubscription(ctx context.Context, productId, token string) (*VerifiedPurchase, error) {
	url := fmt.Sprintf("%s/androidpublisher/v3/applications/%s/purchases/subscriptions/%s/tokens/%s",
		v.baseURL, v.packageName, productId, token)

	var sub googleSubscriptionPurchase
	if err := v.get(ctx, url, &sub); err != nil {
		return nil, err
	}

	// paymentState: 0 pending, 1 received, 2 free trial, 3 deferred.
	if sub.PaymentState == nil || *sub.PaymentState == 0 {
		return nil, BusinessError("purchase payment is still pending")
	}
	// A set cancelReason means the subscription will not renew; crediting it
	// as a fresh proof would extend an entitlement Play has already closed.
	if sub.CancelReason != nil {
		return nil, BusinessError("subscription was canceled")
	}

	p := &VerifiedPurchase{
		Platform:              PlatformAndroid,
		ProductID:             productId,
		TransactionID:         LedgerKeyForToken(token),
		OriginalTransactionID: LedgerKeyForToken(token),
		PurchaseDate:          time.UnixMilli(parseMs(sub.StartTimeMillis)),
	}
	if ms := parseMs(sub.ExpiryTimeMillis); ms > 0 {
		expires := time.UnixMilli(ms)
		p.ExpiresAt = &expires
	}
	return p, nil
}

type googleProductPurchase struct {
	OrderId            string `json:"orderId"`
	PurchaseTimeMillis string `json:"purchaseTimeMillis"`
	PurchaseState      *int64 `json:"purchaseState"`
	ConsumptionState   int64  `json:"consumptionState"`
	Acknowledged       int64  `json:"acknowledgementState"`
}

func (v *GoogleVerifier) verifyProduct(ctx context.Context, productId, token string) (*VerifiedPurchase, error) {
	url := fmt.Sprintf("%s/androidpublisher/v3/applications/%s/purchases/products/%s/tokens/%s",
		v.baseURL, v.packageName, productId, token)

	var product googleProductPurchase
	if err := v.get(ctx, url, &product); err != nil {
		return nil, err
	}

	if product.PurchaseState == nil {
		return nil, BusinessError("purchase state missing from play response")
	}
	switch *product.PurchaseState {
	case googlePurchaseStatePurchased:
		// credited below
	case googlePurchaseStateCanceled:
		return nil, BusinessError("purchase was canceled")
	case googlePurchaseStatePending:
		return nil, BusinessError("purchase payment is still pending")
	default:
		return nil, BusinessError("purchase is not in a creditable state")
	}

	return &VerifiedPurchase{
		Platform:              PlatformAndroid,
		ProductID:             productId,
		TransactionID:         LedgerKeyForToken(token),
		OriginalTransactionID: LedgerKeyForToken(token),
		PurchaseDate:          time.UnixMilli(parseMs(product.PurchaseTimeMillis)),
	}, nil
}

func (v *GoogleVerifier) get(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return TransportError("failed to build play request", err)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return TransportError("play developer api unreachable", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return NotFoundError("play has no record of this purchase")
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ConfigurationError("play developer api rejected the service account")
	case resp.StatusCode >= 500:
		return TransportError(fmt.Sprintf("play developer api returned HTTP %d", resp.StatusCode), nil)
	default:
		return VerificationError(fmt.Sprintf("play developer api returned HTTP %d", resp.StatusCode), nil)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return TransportError("failed to read play response", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return TransportError("failed to decode play response", err)
	}
	return nil
}

// LedgerKeyForToken truncates a Play purchase token to the matching key
// stored in the transaction ledger. Full tokens are hundreds of characters;
// the 32-char prefix is stable across webhook deliveries for the same
// purchase.
func LedgerKeyForToken(token string) string {
	if len(token) > 32 {
		return token[:32]
	}
	return token
}
