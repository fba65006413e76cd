// FILE: internal/service/webhook_service.go
package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"lingua-exchange-be/internal/dto"
	"lingua-exchange-be/internal/pkg/logger"
	"lingua-exchange-be/pkg/iap"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// IWebhookService decodes raw store notifications, normalizes them and hands
// them to the async pipeline. The HTTP handler only does decode+publish so
// the store gets its 200 back fast; the consumer applies the state changes.
type IWebhookService interface {
	HandleAppleNotification(ctx context.Context, body []byte) error
	HandleGoogleNotification(ctx context.Context, body []byte) error
	Consume(ctx context.Context) error
}

type webhookService struct {
	pubSub     *gochannel.GoChannel
	topicName  string
	vipService IVipService
	logger     logger.ILogger
}

func NewWebhookService(
	pubSub *gochannel.GoChannel,
	topicName string,
	vipService IVipService,
	log logger.ILogger,
) IWebhookService {
	return &webhookService{
		pubSub:     pubSub,
		topicName:  topicName,
		vipService: vipService,
		logger:     log,
	}
}

func (s *webhookService) HandleAppleNotification(ctx context.Context, body []byte) error {
	n, err := s.normalizeApple(body)
	if err != nil {
		return err
	}
	if n == nil {
		return nil
	}
	return s.publish(n)
}

func (s *webhookService) HandleGoogleNotification(ctx context.Context, body []byte) error {
	n, err := s.normalizeGoogle(body)
	if err != nil {
		return err
	}
	if n == nil {
		return nil
	}
	return s.publish(n)
}

func (s *webhookService) publish(n *dto.VipNotification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := s.pubSub.Publish(s.topicName, msg); err != nil {
		return err
	}
	s.logger.Info("WebhookService", "Notification queued", map[string]interface{}{
		"platform":       n.Platform,
		"kind":           n.Kind,
		"transaction_id": n.MatchingTransactionId,
	})
	return nil
}

func (s *webhookService) Consume(ctx context.Context) error {
	messages, err := s.pubSub.Subscribe(ctx, s.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			s.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (s *webhookService) processMessage(ctx context.Context, msg *message.Message) {
	var n dto.VipNotification
	if err := json.Unmarshal(msg.Payload, &n); err != nil {
		s.logger.Error("WebhookService", "Failed to unmarshal queued notification", map[string]interface{}{
			"error": err.Error(),
		})
		msg.Ack() // Malformed payloads never become valid; drop them.
		return
	}

	if err := s.vipService.ApplyNotification(ctx, &n); err != nil {
		s.logger.Error("WebhookService", "Failed to apply notification", map[string]interface{}{
			"platform":       n.Platform,
			"kind":           n.Kind,
			"transaction_id": n.MatchingTransactionId,
			"error":          err.Error(),
		})
		msg.Nack() // Retriable infrastructure error
		return
	}

	msg.Ack()
}

// --- Apple ---

func (s *webhookService) normalizeApple(body []byte) (*dto.VipNotification, error) {
	var v2 dto.AppleV2Notification
	if err := json.Unmarshal(body, &v2); err == nil && v2.SignedPayload != "" {
		return s.normalizeAppleV2(&v2)
	}

	var v1 dto.AppleV1Notification
	if err := json.Unmarshal(body, &v1); err != nil {
		return nil, err
	}
	if v1.NotificationType == "" {
		return nil, errors.New("apple notification has no recognizable envelope")
	}
	return s.normalizeAppleV1(&v1), nil
}

func (s *webhookService) normalizeAppleV1(v1 *dto.AppleV1Notification) *dto.VipNotification {
	receipt := v1.Receipt()

	n := &dto.VipNotification{
		Platform:              iap.PlatformIOS,
		MatchingTransactionId: receipt.OriginalTransactionId,
		RenewalTransactionId:  receipt.TransactionId,
		ProductId:             receipt.ProductId,
		PurchaseDate:          millisToTime(parseMillis(receipt.PurchaseDateMs)),
		ReceivedAt:            time.Now(),
	}
	if n.MatchingTransactionId == "" {
		n.MatchingTransactionId = v1.OriginalTransactionId
	}

	switch v1.NotificationType {
	case "INITIAL_BUY":
		n.Kind = dto.NotificationKindInitialBuy
	case "RENEWAL", "DID_RENEW", "INTERACTIVE_RENEWAL", "DID_RECOVER":
		n.Kind = dto.NotificationKindRenewal
	case "CANCEL", "REFUND", "REVOKE":
		// Paid-through access survives; only the renewal intent flips. The
		// expiry sweep retires the entitlement when the period runs out.
		n.Kind = dto.NotificationKindCancellation
	case "DID_FAIL_TO_RENEW":
		n.Kind = dto.NotificationKindRenewalFailure
	case "DID_CHANGE_RENEWAL_STATUS":
		n.Kind = dto.NotificationKindRenewalChange
		enabled := v1.AutoRenewStatus == "true"
		n.AutoRenew = &enabled
	default:
		s.logger.Warn("WebhookService", "Unknown apple notification type", map[string]interface{}{
			"type": v1.NotificationType,
		})
		n.Kind = v1.NotificationType
	}
	return n
}

func (s *webhookService) normalizeAppleV2(v2 *dto.AppleV2Notification) (*dto.VipNotification, error) {
	var payload dto.AppleV2DecodedPayload
	if err := iap.DecodeSignedPayload(v2.SignedPayload, &payload); err != nil {
		return nil, err
	}

	var txn dto.AppleV2TransactionInfo
	if payload.Data.SignedTransactionInfo != "" {
		if err := iap.DecodeSignedPayload(payload.Data.SignedTransactionInfo, &txn); err != nil {
			return nil, err
		}
	}

	n := &dto.VipNotification{
		Platform:              iap.PlatformIOS,
		MatchingTransactionId: txn.OriginalTransactionId,
		RenewalTransactionId:  txn.TransactionId,
		ProductId:             txn.ProductId,
		PurchaseDate:          millisToTime(txn.PurchaseDate),
		ReceivedAt:            time.Now(),
	}

	switch payload.NotificationType {
	case "SUBSCRIBED":
		n.Kind = dto.NotificationKindInitialBuy
		if payload.Subtype == "RESUBSCRIBE" {
			n.Kind = dto.NotificationKindRenewal
		}
	case "DID_RENEW":
		n.Kind = dto.NotificationKindRenewal
	case "EXPIRED", "REFUND", "REVOKE", "GRACE_PERIOD_EXPIRED":
		n.Kind = dto.NotificationKindCancellation
	case "DID_FAIL_TO_RENEW":
		n.Kind = dto.NotificationKindRenewalFailure
		if payload.Subtype == "GRACE_PERIOD" {
			n.Kind = dto.NotificationKindGracePeriod
		}
	case "DID_CHANGE_RENEWAL_STATUS":
		n.Kind = dto.NotificationKindRenewalChange
		enabled := payload.Subtype == "AUTO_RENEW_ENABLED"
		n.AutoRenew = &enabled
	default:
		s.logger.Warn("WebhookService", "Unknown apple v2 notification type", map[string]interface{}{
			"type":    payload.NotificationType,
			"subtype": payload.Subtype,
		})
		n.Kind = payload.NotificationType
	}
	return n, nil
}

// --- Google ---

func (s *webhookService) normalizeGoogle(body []byte) (*dto.VipNotification, error) {
	var envelope dto.GooglePubSubEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, err
	}
	if envelope.Message.Data == "" {
		return nil, errors.New("rtdn envelope has no message data")
	}

	raw, err := base64.StdEncoding.DecodeString(envelope.Message.Data)
	if err != nil {
		return nil, err
	}

	var dev dto.GoogleDeveloperNotification
	if err := json.Unmarshal(raw, &dev); err != nil {
		return nil, err
	}

	if dev.TestNotification != nil {
		s.logger.Info("WebhookService", "Ignoring rtdn test notification", nil)
		return nil, nil
	}

	if dev.SubscriptionNotification != nil {
		return s.normalizeGoogleSubscription(&dev), nil
	}
	if dev.OneTimeProductNotification != nil {
		return s.normalizeGoogleProduct(&dev), nil
	}

	s.logger.Warn("WebhookService", "RTDN without subscription or product payload", map[string]interface{}{
		"package": dev.PackageName,
	})
	return nil, nil
}

func (s *webhookService) normalizeGoogleSubscription(dev *dto.GoogleDeveloperNotification) *dto.VipNotification {
	evt := dev.SubscriptionNotification
	key := iap.LedgerKeyForToken(evt.PurchaseToken)

	n := &dto.VipNotification{
		Platform:              iap.PlatformAndroid,
		MatchingTransactionId: key,
		ProductId:             evt.SubscriptionId,
		PurchaseDate:          millisToTime(parseMillis(dev.EventTimeMillis)),
		ReceivedAt:            time.Now(),
	}

	switch evt.NotificationType {
	case dto.GoogleSubscriptionPurchased:
		n.Kind = dto.NotificationKindInitialBuy
		n.RenewalTransactionId = key
	case dto.GoogleSubscriptionRecovered, dto.GoogleSubscriptionRenewed, dto.GoogleSubscriptionRestarted:
		n.Kind = dto.NotificationKindRenewal
		// Play reuses the purchase token across renewals; suffix the event
		// time so each billing cycle lands as its own ledger row.
		n.RenewalTransactionId = key + ":" + dev.EventTimeMillis
	case dto.GoogleSubscriptionCanceled, dto.GoogleSubscriptionOnHold:
		n.Kind = dto.NotificationKindCancellation
	case dto.GoogleSubscriptionInGrace:
		n.Kind = dto.NotificationKindGracePeriod
	case dto.GoogleSubscriptionRevoked:
		n.Kind = dto.NotificationKindRevoke
	case dto.GoogleSubscriptionExpired:
		n.Kind = dto.NotificationKindExpire
	default:
		s.logger.Warn("WebhookService", "Unknown rtdn subscription notification type", map[string]interface{}{
			"type": evt.NotificationType,
		})
		n.Kind = "rtdn_" + strconv.Itoa(evt.NotificationType)
	}
	return n
}

func (s *webhookService) normalizeGoogleProduct(dev *dto.GoogleDeveloperNotification) *dto.VipNotification {
	evt := dev.OneTimeProductNotification
	key := iap.LedgerKeyForToken(evt.PurchaseToken)

	n := &dto.VipNotification{
		Platform:              iap.PlatformAndroid,
		MatchingTransactionId: key,
		ProductId:             evt.Sku,
		PurchaseDate:          millisToTime(parseMillis(dev.EventTimeMillis)),
		ReceivedAt:            time.Now(),
	}

	// ONE_TIME_PRODUCT_PURCHASED=1, ONE_TIME_PRODUCT_CANCELED=2
	switch evt.NotificationType {
	case 1:
		n.Kind = dto.NotificationKindInitialBuy
		n.RenewalTransactionId = key
	case 2:
		n.Kind = dto.NotificationKindRevoke
	default:
		n.Kind = "rtdn_product_" + strconv.Itoa(evt.NotificationType)
	}
	return n
}

func parseMillis(s string) int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// millisToTime keeps missing timestamps as the zero time instead of the
// Unix epoch, so downstream fallbacks can detect them.
func millisToTime(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
