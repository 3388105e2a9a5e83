package processor

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mercadopago/sdk-go/pkg/config"
	"github.com/mercadopago/sdk-go/pkg/payment"
	"github.com/mercadopago/sdk-go/pkg/preference"
	"github.com/shopspring/decimal"
)

type MercadoPagoConfig struct {
	AccessToken   string
	WebhookSecret string // optional; enables x-signature checks
}

type MercadoPago struct {
	preferences   preference.Client
	payments      payment.Client
	webhookSecret string
}

func NewMercadoPago(cfg MercadoPagoConfig) (*MercadoPago, error) {
	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("mercadopago access token is required")
	}

	mpCfg, err := config.New(cfg.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("mercadopago config: %w", err)
	}

	return &MercadoPago{
		preferences:   preference.NewClient(mpCfg),
		payments:      payment.NewClient(mpCfg),
		webhookSecret: cfg.WebhookSecret,
	}, nil
}

func (m *MercadoPago) Name() string {
	return "mercadopago"
}

func (m *MercadoPago) CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	request := preference.Request{
		Items: []preference.ItemRequest{
			{
				Title:       req.Title,
				Description: req.Description,
				Quantity:    req.Quantity,
				UnitPrice:   req.UnitPrice.InexactFloat64(),
				CurrencyID:  req.Currency,
			},
		},
		BackURLs: &preference.BackURLsRequest{
			Success: req.BackURLs.Success,
			Pending: req.BackURLs.Pending,
			Failure: req.BackURLs.Failure,
		},
		NotificationURL:   req.NotificationURL,
		ExternalReference: req.CorrelationToken,
		AutoReturn:        "approved",
	}

	resource, err := m.preferences.Create(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("create preference: %w", err)
	}

	return &Checkout{
		CheckoutID:  resource.ID,
		RedirectURL: resource.InitPoint,
	}, nil
}

func (m *MercadoPago) GetPayment(ctx context.Context, externalEventID string) (*PaymentInfo, error) {
	id, err := strconv.Atoi(externalEventID)
	if err != nil {
		return nil, fmt.Errorf("%w: payment id %q is not numeric", ErrInvalidNotification, externalEventID)
	}

	resource, err := m.payments.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get payment %d: %w", id, err)
	}
	if resource == nil {
		return nil, fmt.Errorf("get payment %d: %w", id, ErrPaymentNotFound)
	}

	return &PaymentInfo{
		PaymentRef:       strconv.Itoa(resource.ID),
		Status:           resource.Status,
		CorrelationToken: resource.ExternalReference,
		PayerEmail:       resource.Payer.Email,
		Amount:           decimal.NewFromFloat(resource.TransactionAmount),
		Currency:         resource.CurrencyID,
	}, nil
}

type mpNotification struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	Data   struct {
		ID json.RawMessage `json:"id"`
	} `json:"data"`
}

// ParseNotification accepts both the JSON body format and the legacy
// ?topic=payment&id= query format.
func (m *MercadoPago) ParseNotification(n Notification) (string, error) {
	var body mpNotification
	if len(n.Body) > 0 {
		if err := json.Unmarshal(n.Body, &body); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidNotification, err)
		}
	}

	kind := firstNonEmpty(body.Type, n.Query.Get("type"), n.Query.Get("topic"))
	if kind != "" && kind != "payment" {
		return "", ErrEventIgnored
	}

	id := firstNonEmpty(rawID(body.Data.ID), n.Query.Get("data.id"), n.Query.Get("id"))
	if id == "" {
		return "", fmt.Errorf("%w: missing payment id", ErrInvalidNotification)
	}

	if m.webhookSecret != "" {
		if err := verifyMercadoPagoSignature(m.webhookSecret, n, id); err != nil {
			return "", err
		}
	}

	return id, nil
}

// verifyMercadoPagoSignature checks x-signature ("ts=...,v1=...") against
// the manifest id:{id};request-id:{x-request-id};ts:{ts};
func verifyMercadoPagoSignature(secret string, n Notification, id string) error {
	header := n.Header.Get("x-signature")
	if header == "" {
		return fmt.Errorf("%w: missing x-signature", ErrInvalidSignature)
	}

	var ts, v1 string
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "ts":
			ts = value
		case "v1":
			v1 = value
		}
	}
	if ts == "" || v1 == "" {
		return fmt.Errorf("%w: malformed x-signature", ErrInvalidSignature)
	}

	manifest := MercadoPagoManifest(id, n.Header.Get("x-request-id"), ts)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(manifest))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(v1))) {
		return ErrInvalidSignature
	}
	return nil
}

// MercadoPagoManifest builds the signed template. Alphanumeric ids are
// lowercased before signing.
func MercadoPagoManifest(id, requestID, ts string) string {
	var sb strings.Builder
	sb.WriteString("id:" + strings.ToLower(id) + ";")
	if requestID != "" {
		sb.WriteString("request-id:" + requestID + ";")
	}
	sb.WriteString("ts:" + ts + ";")
	return sb.String()
}

// rawID accepts both "123" and 123 for data.id.
func rawID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
