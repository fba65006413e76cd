package iap

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	appleProductionVerifyURL = "https://buy.itunes.apple.com/verifyReceipt"
	appleSandboxVerifyURL    = "https://sandbox.itunes.apple.com/verifyReceipt"

	// verifyReceipt status codes.
	appleStatusOK                  = 0
	appleStatusMalformedReceipt    = 21002
	appleStatusUnauthenticated     = 21003
	appleStatusSharedSecretInvalid = 21004
	appleStatusServerUnavailable   = 21005
	appleStatusSandboxOnProduction = 21007
	appleStatusProductionOnSandbox = 21008
)

// AppleVerifier validates App Store purchase proofs: legacy base64 receipts
// via the verifyReceipt endpoint, and StoreKit2 signed transactions locally
// against the certificate chain embedded in the token.
type AppleVerifier struct {
	httpClient    *http.Client
	sharedSecret  string
	bundleId      string
	productionURL string
	sandboxURL    string
}

func NewAppleVerifier(sharedSecret, bundleId string) *AppleVerifier {
	return &AppleVerifier{
		httpClient:    &http.Client{Timeout: 15 * time.Second},
		sharedSecret:  sharedSecret,
		bundleId:      bundleId,
		productionURL: appleProductionVerifyURL,
		sandboxURL:    appleSandboxVerifyURL,
	}
}

func (v *AppleVerifier) Platform() string {
	return PlatformIOS
}

func (v *AppleVerifier) Verify(ctx context.Context, proof string, hint Hint) (*VerifiedPurchase, error) {
	proof = strings.TrimSpace(proof)
	if proof == "" {
		return nil, BusinessError("empty purchase proof")
	}

	var (
		purchase *VerifiedPurchase
		err      error
	)
	if isSignedTransaction(proof) {
		purchase, err = v.verifySignedTransaction(proof)
	} else {
		purchase, err = v.verifyLegacyReceipt(ctx, proof, hint)
	}
	if err != nil {
		return nil, err
	}

	if purchase.ExpiresAt != nil && purchase.ExpiresAt.Before(time.Now()) {
		return nil, BusinessError("subscription expired")
	}
	return purchase, nil
}

// isSignedTransaction detects the StoreKit2 compact JWS form: three
// dot-separated segments with a base64url JSON header. Anything else is
// treated as a legacy receipt blob.
func isSignedTransaction(proof string) bool {
	return strings.HasPrefix(proof, "eyJ") && strings.Count(proof, ".") == 2
}

// --- Legacy receipt path ---

type legacyVerifyRequest struct {
	ReceiptData            string `json:"receipt-data"`
	Password               string `json:"password"`
	ExcludeOldTransactions bool   `json:"exclude-old-transactions"`
}

type legacyInApp struct {
	ProductId             string `json:"product_id"`
	TransactionId         string `json:"transaction_id"`
	OriginalTransactionId string `json:"original_transaction_id"`
	PurchaseDateMs        string `json:"purchase_date_ms"`
	ExpiresDateMs         string `json:"expires_date_ms"`
}

type legacyVerifyResponse struct {
	Status            int           `json:"status"`
	Environment       string        `json:"environment"`
	LatestReceiptInfo []legacyInApp `json:"latest_receipt_info"`
	Receipt           struct {
		InApp []legacyInApp `json:"in_app"`
	} `json:"receipt"`
}

func (v *AppleVerifier) verifyLegacyReceipt(ctx context.Context, receipt string, hint Hint) (*VerifiedPurchase, error) {
	if v.sharedSecret == "" {
		return nil, ConfigurationError("apple shared secret is not configured")
	}

	body, err := json.Marshal(legacyVerifyRequest{
		ReceiptData:            receipt,
		Password:               v.sharedSecret,
		ExcludeOldTransactions: false,
	})
	if err != nil {
		return nil, TransportError("failed to encode verify request", err)
	}

	resp, err := v.sendVerifyRequest(ctx, v.productionURL, body)
	if err != nil {
		return nil, err
	}

	// A sandbox receipt posted to production must be retried once against
	// the sandbox endpoint. Test builds produce these routinely.
	if resp.Status == appleStatusSandboxOnProduction {
		resp, err = v.sendVerifyRequest(ctx, v.sandboxURL, body)
		if err != nil {
			return nil, err
		}
	}

	if err := mapLegacyStatus(resp.Status); err != nil {
		return nil, err
	}

	records := resp.LatestReceiptInfo
	if len(records) == 0 {
		records = resp.Receipt.InApp
	}
	if len(records) == 0 {
		return nil, NotFoundError("receipt contains no purchase records")
	}

	selected, ok := selectReceiptRecord(records, hint)
	if !ok {
		return nil, NotFoundError("hinted purchase not found in receipt")
	}

	return legacyRecordToPurchase(selected), nil
}

func (v *AppleVerifier) sendVerifyRequest(ctx context.Context, url string, body []byte) (*legacyVerifyResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, TransportError("failed to build verify request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, TransportError("apple verify endpoint unreachable", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, TransportError(fmt.Sprintf("apple verify endpoint returned HTTP %d", httpResp.StatusCode), nil)
	}

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, TransportError("failed to read verify response", err)
	}

	var resp legacyVerifyResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, TransportError("failed to decode verify response", err)
	}
	return &resp, nil
}

func mapLegacyStatus(status int) error {
	switch status {
	case appleStatusOK:
		return nil
	case appleStatusMalformedReceipt:
		return BusinessError("malformed receipt data")
	case appleStatusUnauthenticated:
		return VerificationError("receipt could not be authenticated", nil)
	case appleStatusSharedSecretInvalid:
		return ConfigurationError("apple shared secret rejected")
	case appleStatusServerUnavailable:
		return TransportError("apple receipt server unavailable", nil)
	case appleStatusProductionOnSandbox:
		return BusinessError("receipt sent to the wrong environment")
	default:
		return VerificationError(fmt.Sprintf("receipt rejected with status %d", status), nil)
	}
}

// selectReceiptRecord picks the purchase matching the hint, or the most
// recently purchased record when no hint was given.
func selectReceiptRecord(records []legacyInApp, hint Hint) (legacyInApp, bool) {
	if hint.ProductID != "" || hint.TransactionID != "" {
		for _, r := range records {
			if hint.ProductID != "" && r.ProductId != hint.ProductID {
				continue
			}
			if hint.TransactionID != "" && r.TransactionId != hint.TransactionID && r.OriginalTransactionId != hint.TransactionID {
				continue
			}
			return r, true
		}
		return legacyInApp{}, false
	}

	sorted := make([]legacyInApp, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		return parseMs(sorted[i].PurchaseDateMs) > parseMs(sorted[j].PurchaseDateMs)
	})
	return sorted[0], true
}

func legacyRecordToPurchase(r legacyInApp) *VerifiedPurchase {
	p := &VerifiedPurchase{
		Platform:              PlatformIOS,
		ProductID:             r.ProductId,
		TransactionID:         r.TransactionId,
		OriginalTransactionID: r.OriginalTransactionId,
		PurchaseDate:          time.UnixMilli(parseMs(r.PurchaseDateMs)),
	}
	if ms := parseMs(r.ExpiresDateMs); ms > 0 {
		expires := time.UnixMilli(ms)
		p.ExpiresAt = &expires
	}
	return p
}

func parseMs(s string) int64 {
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}

// --- StoreKit2 signed transaction path ---

type appTransactionClaims struct {
	TransactionId         string `json:"transactionId"`
	OriginalTransactionId string `json:"originalTransactionId"`
	ProductId             string `json:"productId"`
	BundleId              string `json:"bundleId"`
	PurchaseDate          int64  `json:"purchaseDate"`
	ExpiresDate           int64  `json:"expiresDate"`
	Environment           string `json:"environment"`
	jwt.RegisteredClaims
}

type jwsHeader struct {
	Alg string   `json:"alg"`
	X5c []string `json:"x5c"`
}

// verifySignedTransaction checks the ES256 signature against the leaf
// certificate embedded in the token's x5c header before trusting any claim.
func (v *AppleVerifier) verifySignedTransaction(token string) (*VerifiedPurchase, error) {
	leafKey, err := extractLeafKey(token)
	if err != nil {
		return nil, err
	}

	claims := &appTransactionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return leafKey, nil
	}, jwt.WithValidMethods([]string{"ES256"}))
	if err != nil {
		return nil, VerificationError("signed transaction signature invalid", err)
	}
	if !parsed.Valid {
		return nil, VerificationError("signed transaction rejected", nil)
	}

	if v.bundleId != "" && claims.BundleId != "" && claims.BundleId != v.bundleId {
		return nil, VerificationError("signed transaction bundle id mismatch", nil)
	}

	p := &VerifiedPurchase{
		Platform:              PlatformIOS,
		ProductID:             claims.ProductId,
		TransactionID:         claims.TransactionId,
		OriginalTransactionID: claims.OriginalTransactionId,
		PurchaseDate:          time.UnixMilli(claims.PurchaseDate),
	}
	if claims.ExpiresDate > 0 {
		expires := time.UnixMilli(claims.ExpiresDate)
		p.ExpiresAt = &expires
	}
	return p, nil
}

func extractLeafKey(token string) (*ecdsa.PublicKey, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, VerificationError("signed transaction is not a compact JWS", nil)
	}

	headerRaw, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, VerificationError("signed transaction header is not base64url", err)
	}

	var header jwsHeader
	if err := json.Unmarshal(headerRaw, &header); err != nil {
		return nil, VerificationError("signed transaction header is not valid JSON", err)
	}
	if len(header.X5c) == 0 {
		return nil, VerificationError("signed transaction carries no certificate chain", nil)
	}

	der, err := base64.StdEncoding.DecodeString(header.X5c[0])
	if err != nil {
		return nil, VerificationError("leaf certificate is not valid base64", err)
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, VerificationError("leaf certificate cannot be parsed", err)
	}

	key, ok := cert.PublicKey.(*ecdsa.PublicKey)
	if !ok {
		return nil, VerificationError("leaf certificate does not hold an ECDSA key", nil)
	}
	return key, nil
}

// DecodeSignedPayload parses a JWS compact token WITHOUT signature
// verification and unmarshals its payload into out. It exists for server
// notification envelopes whose inner transaction is re-verified separately;
// never feed client-supplied proofs through it.
func DecodeSignedPayload(token string, out interface{}) error {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return VerificationError("payload is not a compact JWS", nil)
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return VerificationError("payload segment is not base64url", err)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return VerificationError("payload is not valid JSON", err)
	}
	return nil
}
