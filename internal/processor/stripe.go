package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"
)

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string // optional; enables Stripe-Signature checks
}

// Stripe drives Stripe Checkout. The checkout session id doubles as the
// processor payment reference.
type Stripe struct {
	sessions      *session.Client
	webhookSecret string
}

func NewStripe(cfg StripeConfig) (*Stripe, error) {
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("stripe secret key is required")
	}

	return &Stripe{
		sessions: &session.Client{
			B:   stripe.GetBackend(stripe.APIBackend),
			Key: cfg.SecretKey,
		},
		webhookSecret: cfg.WebhookSecret,
	}, nil
}

func (s *Stripe) Name() string {
	return "stripe"
}

func (s *Stripe) CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(req.CorrelationToken),
		SuccessURL:        stripe.String(req.BackURLs.Success + "?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:         stripe.String(req.BackURLs.Failure),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(strings.ToLower(req.Currency)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(req.Title),
						Description: stripe.String(req.Description),
					},
					UnitAmount: stripe.Int64(minorUnits(req.UnitPrice)),
				},
				Quantity: stripe.Int64(int64(req.Quantity)),
			},
		},
	}
	params.Context = ctx
	params.AddMetadata("correlation_token", req.CorrelationToken)

	cs, err := s.sessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	return &Checkout{
		CheckoutID:  cs.ID,
		RedirectURL: cs.URL,
	}, nil
}

func (s *Stripe) GetPayment(ctx context.Context, externalEventID string) (*PaymentInfo, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("payment_intent")

	cs, err := s.sessions.Get(externalEventID, params)
	if err != nil {
		return nil, fmt.Errorf("get checkout session %s: %w", externalEventID, err)
	}

	info := &PaymentInfo{
		PaymentRef:       cs.ID,
		Status:           stripeSessionStatus(cs),
		CorrelationToken: cs.ClientReferenceID,
		Amount:           decimal.New(cs.AmountTotal, -2),
		Currency:         strings.ToUpper(string(cs.Currency)),
	}
	if info.CorrelationToken == "" {
		info.CorrelationToken = cs.Metadata["correlation_token"]
	}
	if cs.CustomerDetails != nil {
		info.PayerEmail = cs.CustomerDetails.Email
	}

	return info, nil
}

// stripeSessionStatus folds session and payment intent state into the
// processor-neutral status vocabulary. Unrecognised combinations are
// returned verbatim.
func stripeSessionStatus(cs *stripe.CheckoutSession) string {
	switch {
	case cs.Status == stripe.CheckoutSessionStatusExpired:
		return "cancelled"
	case cs.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		cs.PaymentStatus == stripe.CheckoutSessionPaymentStatusNoPaymentRequired:
		return "approved"
	case cs.PaymentIntent != nil && cs.PaymentIntent.Status == stripe.PaymentIntentStatusCanceled:
		return "cancelled"
	case cs.Status == stripe.CheckoutSessionStatusComplete &&
		cs.PaymentIntent != nil && cs.PaymentIntent.Status == stripe.PaymentIntentStatusRequiresPaymentMethod:
		return "rejected"
	case cs.Status == stripe.CheckoutSessionStatusComplete:
		return "in_process"
	case cs.Status == stripe.CheckoutSessionStatusOpen:
		return "pending"
	default:
		return string(cs.Status) + "/" + string(cs.PaymentStatus)
	}
}

var stripeCheckoutEvents = map[stripe.EventType]struct{}{
	"checkout.session.completed":               {},
	"checkout.session.expired":                 {},
	"checkout.session.async_payment_succeeded": {},
	"checkout.session.async_payment_failed":    {},
}

func (s *Stripe) ParseNotification(n Notification) (string, error) {
	var event stripe.Event
	if s.webhookSecret != "" {
		var err error
		event, err = webhook.ConstructEventWithOptions(n.Body, n.Header.Get("Stripe-Signature"), s.webhookSecret,
			webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
	} else if err := json.Unmarshal(n.Body, &event); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidNotification, err)
	}

	if _, ok := stripeCheckoutEvents[event.Type]; !ok {
		return "", ErrEventIgnored
	}
	if event.Data == nil {
		return "", fmt.Errorf("%w: event %s has no data", ErrInvalidNotification, event.ID)
	}

	var object struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(event.Data.Raw, &object); err != nil || object.ID == "" {
		return "", fmt.Errorf("%w: event %s has no checkout session id", ErrInvalidNotification, event.ID)
	}

	return object.ID, nil
}

// minorUnits converts to the smallest currency unit (cents).
func minorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
