// FILE: internal/dto/webhook_dto.go
package dto

import "time"

// Internal notification kinds both platforms' webhooks normalize onto.
const (
	NotificationKindRenewal        = "renewal"
	NotificationKindInitialBuy     = "initial_buy"
	NotificationKindCancellation   = "cancellation"
	NotificationKindRevoke         = "revoke"
	NotificationKindExpire         = "expire"
	NotificationKindRenewalFailure = "renewal_failure"
	NotificationKindRenewalChange  = "renewal_status_change"
	NotificationKindGracePeriod    = "grace_period"
)

// VipNotification is the normalized form every platform webhook is reduced
// to before dispatch. MatchingTransactionId locates the owning user through
// the ledger; RenewalTransactionId is the new event to append on renewals.
type VipNotification struct {
	Platform              string    `json:"platform"`
	Kind                  string    `json:"kind"`
	MatchingTransactionId string    `json:"matchingTransactionId"`
	RenewalTransactionId  string    `json:"renewalTransactionId,omitempty"`
	ProductId             string    `json:"productId,omitempty"`
	PurchaseDate          time.Time `json:"purchaseDate,omitempty"`
	AutoRenew             *bool     `json:"autoRenew,omitempty"`
	ReceivedAt            time.Time `json:"receivedAt"`
}

// --- Apple wire formats ---

// AppleV1Notification is the plain-JSON server notification body.
type AppleV1Notification struct {
	NotificationType         string             `json:"notification_type"`
	Environment              string             `json:"environment"`
	AutoRenewStatus          string             `json:"auto_renew_status"`
	OriginalTransactionId    string             `json:"original_transaction_id"`
	LatestReceiptInfo        AppleV1ReceiptInfo `json:"latest_receipt_info"`
	LatestExpiredReceiptInfo AppleV1ReceiptInfo `json:"latest_expired_receipt_info"`
}

type AppleV1ReceiptInfo struct {
	ProductId             string `json:"product_id"`
	TransactionId         string `json:"transaction_id"`
	OriginalTransactionId string `json:"original_transaction_id"`
	PurchaseDateMs        string `json:"purchase_date_ms"`
	ExpiresDateMs         string `json:"expires_date_ms"`
}

// Receipt returns whichever receipt block the notification carries;
// CANCEL-type notifications only populate the expired one.
func (n *AppleV1Notification) Receipt() AppleV1ReceiptInfo {
	if n.LatestReceiptInfo.OriginalTransactionId != "" {
		return n.LatestReceiptInfo
	}
	return n.LatestExpiredReceiptInfo
}

// AppleV2Notification is the App Store Server Notifications V2 envelope:
// one signed payload wrapping a further signed transaction.
type AppleV2Notification struct {
	SignedPayload string `json:"signedPayload"`
}

type AppleV2DecodedPayload struct {
	NotificationType string      `json:"notificationType"`
	Subtype          string      `json:"subtype"`
	NotificationUUID string      `json:"notificationUUID"`
	Data             AppleV2Data `json:"data"`
	SignedDate       int64       `json:"signedDate"`
}

type AppleV2Data struct {
	BundleId              string `json:"bundleId"`
	Environment           string `json:"environment"`
	SignedTransactionInfo string `json:"signedTransactionInfo"`
	SignedRenewalInfo     string `json:"signedRenewalInfo"`
}

type AppleV2TransactionInfo struct {
	TransactionId         string `json:"transactionId"`
	OriginalTransactionId string `json:"originalTransactionId"`
	ProductId             string `json:"productId"`
	PurchaseDate          int64  `json:"purchaseDate"`
	ExpiresDate           int64  `json:"expiresDate"`
	Type                  string `json:"type"`
}

// --- Google wire formats ---

// GooglePubSubEnvelope is the RTDN push body; Data is base64-encoded JSON.
type GooglePubSubEnvelope struct {
	Message struct {
		Data      string `json:"data"`
		MessageId string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// Google subscription notification type codes.
const (
	GoogleSubscriptionRecovered = 1
	GoogleSubscriptionRenewed   = 2
	GoogleSubscriptionCanceled  = 3
	GoogleSubscriptionPurchased = 4
	GoogleSubscriptionOnHold    = 5
	GoogleSubscriptionInGrace   = 6
	GoogleSubscriptionRestarted = 7
	GoogleSubscriptionRevoked   = 12
	GoogleSubscriptionExpired   = 13
)

type GoogleDeveloperNotification struct {
	Version                    string                     `json:"version"`
	PackageName                string                     `json:"packageName"`
	EventTimeMillis            string                     `json:"eventTimeMillis"`
	SubscriptionNotification   *GoogleSubscriptionEvent   `json:"subscriptionNotification,omitempty"`
	OneTimeProductNotification *GoogleOneTimeProductEvent `json:"oneTimeProductNotification,omitempty"`
	TestNotification           *struct{ Version string }  `json:"testNotification,omitempty"`
}

type GoogleSubscriptionEvent struct {
	Version          string `json:"version"`
	NotificationType int    `json:"notificationType"`
	PurchaseToken    string `json:"purchaseToken"`
	SubscriptionId   string `json:"subscriptionId"`
}

type GoogleOneTimeProductEvent struct {
	Version          string `json:"version"`
	NotificationType int    `json:"notificationType"`
	PurchaseToken    string `json:"purchaseToken"`
	Sku              string `json:"sku"`
}

type WebhookAckResponse struct {
	Success bool `json:"success"`
}
