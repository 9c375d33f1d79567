package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tron-gateway/internal/config"
	"tron-gateway/internal/domain"
	"tron-gateway/internal/retry"
)

// Event types carried in the payload's event_type field.
const (
	EventIncomingTransaction = "incoming_transaction"
	EventOutgoingTransfer    = "outgoing_transfer"
	EventWalletCreated       = "wallet_created"
	EventWalletActivated     = "wallet_activated"
)

const (
	signatureHeader = "X-Webhook-Signature"
	deliveryHeader  = "X-Webhook-Delivery"
	testHeader      = "X-Webhook-Test"
)

type payload struct {
	EventType string      `json:"event_type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// Notifier posts gateway events to the configured endpoint. Each delivery is
// signed with HMAC-SHA256 over the body and retried with backoff. An empty
// URL disables delivery entirely.
type Notifier struct {
	url      string
	secret   []byte
	client   *http.Client
	retryCfg retry.Config
	logger   *zap.Logger
}

func NewNotifier(cfg config.WebhookConfig, logger *zap.Logger) *Notifier {
	return &Notifier{
		url:    cfg.URL,
		secret: []byte(cfg.Secret),
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		retryCfg: retry.DefaultConfig(),
		logger:   logger,
	}
}

// Enabled reports whether an endpoint is configured.
func (n *Notifier) Enabled() bool { return n.url != "" }

func (n *Notifier) WalletCreated(ctx context.Context, wallet *domain.Wallet) {
	n.send(ctx, EventWalletCreated, map[string]interface{}{
		"wallet_id":  wallet.ID,
		"address":    wallet.Address,
		"owner_id":   wallet.OwnerID,
		"created_at": wallet.CreatedAt,
	})
}

func (n *Notifier) WalletActivated(ctx context.Context, wallet *domain.Wallet, txHash string) {
	n.send(ctx, EventWalletActivated, map[string]interface{}{
		"wallet_id": wallet.ID,
		"address":   wallet.Address,
		"tx_hash":   txHash,
	})
}

func (n *Notifier) IncomingTransaction(ctx context.Context, tx *domain.IncomingTransaction) {
	n.send(ctx, EventIncomingTransaction, map[string]interface{}{
		"wallet_id":    tx.WalletID,
		"tx_hash":      tx.TxHash,
		"from_address": tx.FromAddress,
		"to_address":   tx.ToAddress,
		"amount":       tx.Amount,
		"status":       tx.Status,
		"detected_at":  tx.DetectedAt,
	})
}

func (n *Notifier) OutgoingTransfer(ctx context.Context, t *domain.OutgoingTransfer) {
	n.send(ctx, EventOutgoingTransfer, map[string]interface{}{
		"transfer_id":    t.ID,
		"from_wallet_id": t.FromWalletID,
		"to_address":     t.ToAddress,
		"amount":         t.Amount,
		"order_amount":   t.OrderAmount,
		"commission":     t.Commission,
		"gas_cost":       t.GasCost,
		"status":         t.Status,
		"tx_hash":        t.TxHash,
		"reference_id":   t.ReferenceID,
		"error_message":  t.ErrorMessage,
	})
}

// send delivers one event. Failures after all retries are logged, never
// propagated; webhook trouble must not break the pipeline that emits events.
func (n *Notifier) send(ctx context.Context, eventType string, data interface{}) {
	if !n.Enabled() {
		return
	}

	body, err := json.Marshal(payload{
		EventType: eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
	if err != nil {
		n.logger.Error("failed to marshal webhook payload",
			zap.String("event_type", eventType),
			zap.Error(err))
		return
	}

	deliveryID := uuid.New().String()
	err = retry.Do(ctx, n.retryCfg, n.logger, "webhook_delivery", func(ctx context.Context) error {
		return n.post(ctx, body, deliveryID, false)
	})
	if err != nil {
		n.logger.Error("webhook delivery failed",
			zap.String("event_type", eventType),
			zap.String("delivery_id", deliveryID),
			zap.Error(err))
		return
	}

	n.logger.Debug("webhook delivered",
		zap.String("event_type", eventType),
		zap.String("delivery_id", deliveryID))
}

// HealthCheck probes the endpoint with a test delivery. The test header lets
// receivers acknowledge without processing.
func (n *Notifier) HealthCheck(ctx context.Context) error {
	if !n.Enabled() {
		return nil
	}

	body, err := json.Marshal(payload{
		EventType: "health_check",
		Timestamp: time.Now().UTC(),
		Data:      map[string]string{"status": "ping"},
	})
	if err != nil {
		return err
	}
	return n.post(ctx, body, uuid.New().String(), true)
}

func (n *Notifier) post(ctx context.Context, body []byte, deliveryID string, test bool) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return retry.Permanent(fmt.Errorf("failed to create request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(deliveryHeader, deliveryID)
	req.Header.Set(signatureHeader, "sha256="+n.Sign(body))
	if test {
		req.Header.Set(testHeader, "true")
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return retry.Network(fmt.Errorf("webhook request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err := fmt.Errorf("webhook endpoint returned %d: %s", resp.StatusCode, string(respBody))
		return retry.FromHTTPStatus(resp.StatusCode, err)
	}
	return nil
}

// Sign computes the hex HMAC-SHA256 of the body under the shared secret.
func (n *Notifier) Sign(body []byte) string {
	mac := hmac.New(sha256.New, n.secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
