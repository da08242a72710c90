package model

import (
	"time"

	"github.com/google/uuid"
)

// Ticket binds a client to one seat unit of a movie.  FinalPrice is the
// movie's base price at booking time and never follows later price
// changes.  Only ShowingTime may change after creation.
//
// Fields:
//  ID          – primary key (UUID).
//  ShowingTime – when the client attends the movie (UTC, microseconds).
//  FinalPrice  – price snapshot taken at booking.
//  ClientID    – owning client account.
//  MovieID     – movie whose capacity the ticket consumes.
type Ticket struct {
	ID          uuid.UUID // tickets.id
	ShowingTime time.Time // tickets.showing_time
	FinalPrice  float64   // tickets.final_price
	ClientID    uuid.UUID // tickets.client_id
	MovieID     uuid.UUID // tickets.movie_id
}

// NormalizeTime brings a showing time to the precision stored by the
// tickets.showing_time column.
func NormalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// VersionClaims lists the field values the version token is derived from.
func (t Ticket) VersionClaims() map[string]any {
	return map[string]any{
		"kind":   "ticket",
		"id":     t.ID.String(),
		"time":   NormalizeTime(t.ShowingTime).Format(time.RFC3339Nano),
		"price":  FormatPrice(t.FinalPrice),
		"client": t.ClientID.String(),
		"movie":  t.MovieID.String(),
	}
}
