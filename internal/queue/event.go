// Package queue defines message payloads exchanged over the message broker
// and the background consumer that records them.
package queue

import "time"

// Ticket lifecycle event types.
const (
	TicketBooked    = "ticket.booked"
	TicketCancelled = "ticket.cancelled"
)

// TicketEvent is published after a ticket is booked or cancelled.  It
// carries enough information for downstream consumers to log, notify, or
// trigger analytics without querying the primary database.
type TicketEvent struct {
	Type        string    `json:"type"`
	TicketID    string    `json:"ticket_id"`
	ClientID    string    `json:"client_id"`
	MovieID     string    `json:"movie_id"`
	MovieTitle  string    `json:"movie_title,omitempty"`
	ShowingTime time.Time `json:"showing_time"`
	FinalPrice  float64   `json:"final_price"`
	OccurredAt  time.Time `json:"occurred_at"`
}
