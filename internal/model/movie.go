package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/cinema-ticketing/internal/apperr"
)

// Bounds enforced on every movie write.
const (
	MinBasePrice     = 0.0
	MaxBasePrice     = 100.0
	MinScreeningRoom = 1
	MaxScreeningRoom = 30
	MinSeats         = 0
	MaxSeats         = 120
)

// Movie represents a screening offered for sale.  AvailableSeats is the
// capacity of the showing; the number of seats already sold is derived
// by counting tickets and is never stored on the movie.
//
// Fields:
//  ID             – primary key (UUID).
//  Title          – movie title.
//  BasePrice      – price copied onto every ticket at booking time.
//  ScreeningRoom  – number of the room the movie plays in.
//  AvailableSeats – seat capacity of the showing.
type Movie struct {
	ID             uuid.UUID // movies.id
	Title          string    // movies.title
	BasePrice      float64   // movies.base_price
	ScreeningRoom  int       // movies.screening_room
	AvailableSeats int       // movies.available_seats
}

// Normalize trims the title and rounds the price to cents, the precision
// of the movies.base_price column.
func (m Movie) Normalize() Movie {
	m.Title = strings.TrimSpace(m.Title)
	m.BasePrice = RoundPrice(m.BasePrice)
	return m
}

// Validate checks the numeric ranges of a movie.
func (m Movie) Validate() error {
	switch {
	case m.Title == "":
		return fmt.Errorf("%w: title is required", apperr.ErrInvalidInput)
	case m.BasePrice < MinBasePrice || m.BasePrice > MaxBasePrice:
		return fmt.Errorf("%w: base price must be between %.0f and %.0f", apperr.ErrInvalidInput, MinBasePrice, MaxBasePrice)
	case m.ScreeningRoom < MinScreeningRoom || m.ScreeningRoom > MaxScreeningRoom:
		return fmt.Errorf("%w: screening room must be between %d and %d", apperr.ErrInvalidInput, MinScreeningRoom, MaxScreeningRoom)
	case m.AvailableSeats < MinSeats || m.AvailableSeats > MaxSeats:
		return fmt.Errorf("%w: available seats must be between %d and %d", apperr.ErrInvalidInput, MinSeats, MaxSeats)
	}
	return nil
}

// VersionClaims lists the field values the version token is derived from.
func (m Movie) VersionClaims() map[string]any {
	return map[string]any{
		"kind":  "movie",
		"id":    m.ID.String(),
		"title": m.Title,
		"price": FormatPrice(m.BasePrice),
		"room":  m.ScreeningRoom,
		"seats": m.AvailableSeats,
	}
}

// RoundPrice rounds a price to two decimal places.
func RoundPrice(p float64) float64 {
	return math.Round(p*100) / 100
}

// FormatPrice renders a price with exactly two decimals.
func FormatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', 2, 64)
}
