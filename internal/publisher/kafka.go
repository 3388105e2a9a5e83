package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"cinema-ticketing/pkg/utils"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

type kafkaPublisher struct {
	client *kgo.Client
	topic  string
	log    *zap.Logger
}

func NewKafka(cfg utils.KafkaConfig, log *zap.Logger) (TicketPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.AllowAutoTopicCreation(),
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	return &kafkaPublisher{
		client: client,
		topic:  cfg.Topic,
		log:    log.With(zap.String("publisher", "kafka")),
	}, nil
}

func (p *kafkaPublisher) PublishTicketIssued(ctx context.Context, event TicketIssued) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal ticket issued: %w", err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.PaymentID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte("ticket.issued")},
		},
	}

	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce ticket issued %s: %w", event.TicketID, err)
	}

	p.log.Debug("Ticket issued event published",
		zap.String("ticket_id", event.TicketID),
		zap.String("topic", p.topic),
	)
	return nil
}

func (p *kafkaPublisher) Close() {
	p.client.Close()
}
