package handler

import (
	"context"

	"github.com/sanosuguru/ticket-reservation/internal/application"
	"github.com/sanosuguru/ticket-reservation/internal/domain/event"
	"github.com/sanosuguru/ticket-reservation/internal/domain/ticket"
)

// EventServiceInterface はイベントサービスのインターフェース
type EventServiceInterface interface {
	CreateEvent(ctx context.Context, input application.CreateEventInput) (*event.Event, error)
	GetEvent(ctx context.Context, id int64) (*event.WithAvailability, error)
	ListEvents(ctx context.Context) ([]*event.WithAvailability, error)
	ListEventsPaged(ctx context.Context, page, size int, sortKey string) (*application.Page, error)
	ListAvailableEvents(ctx context.Context) ([]*event.WithAvailability, error)
}

// TicketServiceInterface はチケットサービスのインターフェース
type TicketServiceInterface interface {
	Reserve(ctx context.Context, eventID int64, customerEmail string) (*ticket.Ticket, error)
	ListAvailableTickets(ctx context.Context, eventID int64) ([]*ticket.Ticket, error)
	ListByCustomer(ctx context.Context, email string) ([]*ticket.Ticket, error)
}
