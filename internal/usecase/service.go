package usecase

import (
	"cinema-ticketing/internal/data/repository"
	"cinema-ticketing/internal/processor"
	"cinema-ticketing/internal/publisher"
	"cinema-ticketing/pkg/utils"

	"go.uber.org/zap"
)

type Service struct {
	Inventory SeatInventory
	Showtime  ShowtimeService
	Payment   PaymentService
	Webhook   WebhookService
	Ticket    TicketService
}

func NewService(store repository.Store, proc processor.Processor, pub publisher.TicketPublisher, config *utils.Config, log *zap.Logger) *Service {
	inventory := NewSeatInventory(store, log)
	tickets := NewTicketService(store, log)

	return &Service{
		Inventory: inventory,
		Showtime:  NewShowtimeService(store, inventory, log),
		Payment:   NewPaymentService(store, inventory, proc, config, log),
		Webhook:   NewWebhookService(store, inventory, tickets, proc, pub, config, log),
		Ticket:    tickets,
	}
}
