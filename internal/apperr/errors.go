// Package apperr defines the error kinds shared by the authorization,
// concurrency and allocation layers.  Each kind is a sentinel value so that
// callers can test for it with errors.Is after any amount of wrapping.
// Handlers translate a kind into an HTTP status with Status; anything that
// is not one of these kinds is treated as a store failure and reported as
// 500 without further interpretation.
package apperr

import (
	"errors"
	"net/http"
)

var (
	// ErrUnauthenticated is returned when an action requires an identity
	// and the request carries none.
	ErrUnauthenticated = errors.New("authentication required")

	// ErrUnauthorized is returned when an identity is present but the
	// authorization policy denies the action.
	ErrUnauthorized = errors.New("forbidden")

	// ErrNotFound is returned when a referenced account, movie or ticket
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrPreconditionRequired is returned when an update omits the
	// version token.
	ErrPreconditionRequired = errors.New("version token required")

	// ErrPreconditionFailed is returned when the presented version token no
	// longer matches the stored entity.
	ErrPreconditionFailed = errors.New("version token is stale")

	// ErrImmutableField is returned when an update tries to change an
	// identifier, role, owner or movie link.
	ErrImmutableField = errors.New("immutable field cannot be changed")

	// ErrAllocationExhausted is returned when a movie has no free seats.
	ErrAllocationExhausted = errors.New("no seats left for this movie")

	// ErrReferentialConflict is returned when a movie is deleted while
	// tickets still reference it.
	ErrReferentialConflict = errors.New("movie still has tickets")

	ErrCapacityBelowReserved = errors.New("available seats below reserved count")
	ErrLoginTaken            = errors.New("login already taken")
	ErrInvalidInput          = errors.New("invalid input")
	ErrAccountInactive       = errors.New("account is not active")
	ErrInvalidCredentials    = errors.New("invalid credentials")
)

// Status maps an error kind to the HTTP status the API responds with.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrUnauthenticated), errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrPreconditionRequired):
		return http.StatusPreconditionRequired
	case errors.Is(err, ErrPreconditionFailed):
		return http.StatusPreconditionFailed
	case errors.Is(err, ErrImmutableField), errors.Is(err, ErrInvalidInput), errors.Is(err, ErrAccountInactive):
		return http.StatusBadRequest
	case errors.Is(err, ErrAllocationExhausted), errors.Is(err, ErrReferentialConflict),
		errors.Is(err, ErrCapacityBelowReserved), errors.Is(err, ErrLoginTaken):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// Expected reports whether err is one of the kinds above, as opposed to a
// store or transport failure.
func Expected(err error) bool {
	return err != nil && Status(err) != http.StatusInternalServerError
}
