package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"lingua-exchange-be/internal/dto"
	"lingua-exchange-be/pkg/iap"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWebhookService() *webhookService {
	return &webhookService{logger: nopLogger{}}
}

// makeJWS produces an unsigned-but-well-formed compact JWS, which is all the
// notification decoder looks at.
func makeJWS(t *testing.T, payload interface{}) string {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"ES256"}`))
	return header + "." + base64.RawURLEncoding.EncodeToString(raw) + ".c2ln"
}

func TestNormalizeAppleV1(t *testing.T) {
	ws := newTestWebhookService()

	cases := []struct {
		notificationType string
		wantKind         string
	}{
		{"INITIAL_BUY", dto.NotificationKindInitialBuy},
		{"DID_RENEW", dto.NotificationKindRenewal},
		{"INTERACTIVE_RENEWAL", dto.NotificationKindRenewal},
		{"DID_RECOVER", dto.NotificationKindRenewal},
		{"CANCEL", dto.NotificationKindCancellation},
		{"REFUND", dto.NotificationKindCancellation},
		{"DID_FAIL_TO_RENEW", dto.NotificationKindRenewalFailure},
	}

	for _, tc := range cases {
		n := ws.normalizeAppleV1(&dto.AppleV1Notification{
			NotificationType: tc.notificationType,
			LatestReceiptInfo: dto.AppleV1ReceiptInfo{
				ProductId:             "vip_monthly",
				TransactionId:         "2000000002",
				OriginalTransactionId: "1000000001",
				PurchaseDateMs:        "1704892800000",
			},
		})
		assert.Equal(t, tc.wantKind, n.Kind, tc.notificationType)
		assert.Equal(t, iap.PlatformIOS, n.Platform)
		assert.Equal(t, "1000000001", n.MatchingTransactionId)
		assert.Equal(t, "2000000002", n.RenewalTransactionId)
	}
}

func TestNormalizeAppleV1RenewalStatusChange(t *testing.T) {
	ws := newTestWebhookService()

	n := ws.normalizeAppleV1(&dto.AppleV1Notification{
		NotificationType:      "DID_CHANGE_RENEWAL_STATUS",
		AutoRenewStatus:       "false",
		OriginalTransactionId: "1000000001",
	})
	assert.Equal(t, dto.NotificationKindRenewalChange, n.Kind)
	require.NotNil(t, n.AutoRenew)
	assert.False(t, *n.AutoRenew)
	assert.Equal(t, "1000000001", n.MatchingTransactionId)
}

func TestNormalizeAppleV1CancelUsesExpiredReceipt(t *testing.T) {
	ws := newTestWebhookService()

	n := ws.normalizeAppleV1(&dto.AppleV1Notification{
		NotificationType: "CANCEL",
		LatestExpiredReceiptInfo: dto.AppleV1ReceiptInfo{
			ProductId:             "vip_yearly",
			TransactionId:         "2000000005",
			OriginalTransactionId: "1000000001",
		},
	})
	assert.Equal(t, "1000000001", n.MatchingTransactionId)
	assert.Equal(t, "vip_yearly", n.ProductId)
}

func TestNormalizeAppleV2(t *testing.T) {
	ws := newTestWebhookService()

	signedTxn := makeJWS(t, dto.AppleV2TransactionInfo{
		TransactionId:         "2000000007",
		OriginalTransactionId: "1000000001",
		ProductId:             "vip_monthly",
		PurchaseDate:          1704892800000,
	})
	signedPayload := makeJWS(t, dto.AppleV2DecodedPayload{
		NotificationType: "DID_RENEW",
		Data:             dto.AppleV2Data{SignedTransactionInfo: signedTxn},
	})

	n, err := ws.normalizeApple([]byte(`{"signedPayload":"` + signedPayload + `"}`))
	require.NoError(t, err)

	assert.Equal(t, dto.NotificationKindRenewal, n.Kind)
	assert.Equal(t, "1000000001", n.MatchingTransactionId)
	assert.Equal(t, "2000000007", n.RenewalTransactionId)
	assert.Equal(t, "vip_monthly", n.ProductId)
}

func TestNormalizeAppleV2RenewalStatusSubtype(t *testing.T) {
	ws := newTestWebhookService()

	signedPayload := makeJWS(t, dto.AppleV2DecodedPayload{
		NotificationType: "DID_CHANGE_RENEWAL_STATUS",
		Subtype:          "AUTO_RENEW_DISABLED",
		Data: dto.AppleV2Data{
			SignedTransactionInfo: makeJWS(t, dto.AppleV2TransactionInfo{OriginalTransactionId: "1000000001"}),
		},
	})

	n, err := ws.normalizeApple([]byte(`{"signedPayload":"` + signedPayload + `"}`))
	require.NoError(t, err)

	assert.Equal(t, dto.NotificationKindRenewalChange, n.Kind)
	require.NotNil(t, n.AutoRenew)
	assert.False(t, *n.AutoRenew)
}

func googleEnvelope(t *testing.T, dev dto.GoogleDeveloperNotification) []byte {
	t.Helper()
	raw, err := json.Marshal(dev)
	require.NoError(t, err)

	var envelope dto.GooglePubSubEnvelope
	envelope.Message.Data = base64.StdEncoding.EncodeToString(raw)
	envelope.Message.MessageId = "msg-1"
	body, err := json.Marshal(envelope)
	require.NoError(t, err)
	return body
}

func TestNormalizeGoogleSubscriptionEvents(t *testing.T) {
	ws := newTestWebhookService()
	token := "playtoken00000000000000000000000-extra"
	key := iap.LedgerKeyForToken(token)

	cases := []struct {
		notificationType int
		wantKind         string
	}{
		{dto.GoogleSubscriptionPurchased, dto.NotificationKindInitialBuy},
		{dto.GoogleSubscriptionRenewed, dto.NotificationKindRenewal},
		{dto.GoogleSubscriptionRecovered, dto.NotificationKindRenewal},
		{dto.GoogleSubscriptionRestarted, dto.NotificationKindRenewal},
		{dto.GoogleSubscriptionCanceled, dto.NotificationKindCancellation},
		{dto.GoogleSubscriptionOnHold, dto.NotificationKindCancellation},
		{dto.GoogleSubscriptionInGrace, dto.NotificationKindGracePeriod},
		{dto.GoogleSubscriptionRevoked, dto.NotificationKindRevoke},
		{dto.GoogleSubscriptionExpired, dto.NotificationKindExpire},
	}

	for _, tc := range cases {
		body := googleEnvelope(t, dto.GoogleDeveloperNotification{
			PackageName:     "com.linguaexchange.app",
			EventTimeMillis: "1704892800000",
			SubscriptionNotification: &dto.GoogleSubscriptionEvent{
				NotificationType: tc.notificationType,
				PurchaseToken:    token,
				SubscriptionId:   "vip_monthly",
			},
		})

		n, err := ws.normalizeGoogle(body)
		require.NoError(t, err, "type %d", tc.notificationType)
		require.NotNil(t, n)

		assert.Equal(t, tc.wantKind, n.Kind, "type %d", tc.notificationType)
		assert.Equal(t, iap.PlatformAndroid, n.Platform)
		assert.Equal(t, key, n.MatchingTransactionId)
		assert.Equal(t, "vip_monthly", n.ProductId)
	}
}

func TestNormalizeGoogleRenewalGetsUniqueLedgerId(t *testing.T) {
	ws := newTestWebhookService()
	token := "playtoken00000000000000000000000-extra"

	body := googleEnvelope(t, dto.GoogleDeveloperNotification{
		EventTimeMillis: "1704892800000",
		SubscriptionNotification: &dto.GoogleSubscriptionEvent{
			NotificationType: dto.GoogleSubscriptionRenewed,
			PurchaseToken:    token,
			SubscriptionId:   "vip_monthly",
		},
	})

	n, err := ws.normalizeGoogle(body)
	require.NoError(t, err)

	assert.Equal(t, iap.LedgerKeyForToken(token)+":1704892800000", n.RenewalTransactionId)
	assert.NotEqual(t, n.MatchingTransactionId, n.RenewalTransactionId)
}

func TestNormalizeGoogleTestNotificationIgnored(t *testing.T) {
	ws := newTestWebhookService()

	body := googleEnvelope(t, dto.GoogleDeveloperNotification{
		TestNotification: &struct{ Version string }{Version: "1.0"},
	})

	n, err := ws.normalizeGoogle(body)
	require.NoError(t, err)
	assert.Nil(t, n)
}

func TestNormalizeGoogleOneTimeProduct(t *testing.T) {
	ws := newTestWebhookService()
	token := "playtoken00000000000000000000000-extra"

	body := googleEnvelope(t, dto.GoogleDeveloperNotification{
		EventTimeMillis: "1704892800000",
		OneTimeProductNotification: &dto.GoogleOneTimeProductEvent{
			NotificationType: 1,
			PurchaseToken:    token,
			Sku:              "vip_yearly_prepaid",
		},
	})

	n, err := ws.normalizeGoogle(body)
	require.NoError(t, err)

	assert.Equal(t, dto.NotificationKindInitialBuy, n.Kind)
	assert.Equal(t, "vip_yearly_prepaid", n.ProductId)
}

// recordingVipService captures applied notifications for pipeline tests.
type recordingVipService struct {
	mu      sync.Mutex
	applied []*dto.VipNotification
}

func (r *recordingVipService) VerifyAndApply(ctx context.Context, userId uuid.UUID, platform string, req *dto.VerifyPurchaseRequest) (*dto.VipStatusResponse, error) {
	return nil, nil
}

func (r *recordingVipService) GetStatus(ctx context.Context, userId uuid.UUID) (*dto.VipStatusResponse, error) {
	return nil, nil
}

func (r *recordingVipService) GetTransactions(ctx context.Context, userId uuid.UUID) ([]*dto.VipTransactionResponse, error) {
	return nil, nil
}

func (r *recordingVipService) ApplyNotification(ctx context.Context, n *dto.VipNotification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applied = append(r.applied, n)
	return nil
}

func (r *recordingVipService) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.applied)
}

func TestWebhookPipelineDeliversToConsumer(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	recorder := &recordingVipService{}
	ws := NewWebhookService(pubSub, "vip.notifications.test", recorder, nopLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, ws.Consume(ctx))

	body := googleEnvelope(t, dto.GoogleDeveloperNotification{
		EventTimeMillis: "1704892800000",
		SubscriptionNotification: &dto.GoogleSubscriptionEvent{
			NotificationType: dto.GoogleSubscriptionRenewed,
			PurchaseToken:    "playtoken00000000000000000000000-extra",
			SubscriptionId:   "vip_monthly",
		},
	})
	require.NoError(t, ws.HandleGoogleNotification(ctx, body))

	assert.Eventually(t, func() bool {
		return recorder.count() == 1
	}, 2*time.Second, 10*time.Millisecond)
}
