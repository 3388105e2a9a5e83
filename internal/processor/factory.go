package processor

import (
	"context"
	"fmt"
	"time"

	"cinema-ticketing/pkg/telemetry"
	"cinema-ticketing/pkg/utils"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// New builds the configured processor wrapped with tracing and latency
// metrics.
func New(cfg utils.PaymentConfig, log *zap.Logger) (Processor, error) {
	var (
		p   Processor
		err error
	)

	switch cfg.Provider {
	case "mercadopago", "":
		p, err = NewMercadoPago(MercadoPagoConfig{
			AccessToken:   cfg.MercadoPagoToken,
			WebhookSecret: cfg.MercadoPagoSecret,
		})
	case "stripe":
		p, err = NewStripe(StripeConfig{
			SecretKey:     cfg.StripeSecretKey,
			WebhookSecret: cfg.StripeWebhookSecret,
		})
	case "mock":
		log.Warn("Using mock payment processor, no real charges will be made")
		p = NewMock()
	default:
		return nil, fmt.Errorf("unknown payment provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	return Instrument(p), nil
}

type instrumented struct {
	Processor
}

// Instrument records a span and a latency sample for every outbound call.
func Instrument(p Processor) Processor {
	return &instrumented{Processor: p}
}

func (i *instrumented) CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	ctx, done := i.observe(ctx, "create_checkout", attribute.String("correlation_token", req.CorrelationToken))
	out, err := i.Processor.CreateCheckout(ctx, req)
	done(err)
	return out, err
}

func (i *instrumented) GetPayment(ctx context.Context, externalEventID string) (*PaymentInfo, error) {
	ctx, done := i.observe(ctx, "get_payment", attribute.String("external_event_id", externalEventID))
	out, err := i.Processor.GetPayment(ctx, externalEventID)
	done(err)
	return out, err
}

func (i *instrumented) observe(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	attrs = append(attrs, attribute.String("processor", i.Name()))
	ctx, span := telemetry.StartSpan(ctx, "processor."+op, attrs...)

	return ctx, func(err error) {
		telemetry.ProcessorLatency.WithLabelValues(i.Name(), op).Observe(time.Since(start).Seconds())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}
