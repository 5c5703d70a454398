package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/renholm/studio-class-booking/internal/model"
	"github.com/renholm/studio-class-booking/internal/repository"
)

// BookingHandler exposes public browsing plus the client's reservation
// and waitlist actions.
type BookingHandler struct {
	Store *repository.Store
}

// NewBookingHandler builds a BookingHandler.
func NewBookingHandler(store *repository.Store) *BookingHandler {
	return &BookingHandler{Store: store}
}

// ListSessions handles GET /v1/sessions, returning upcoming sessions.
func (h *BookingHandler) ListSessions(c echo.Context) error {
	sessions, err := h.Store.Sessions.ListUpcoming(c.Request().Context(), time.Now().UTC(), 50)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"sessions": sessions})
}

// GetSession handles GET /v1/sessions/:id.
func (h *BookingHandler) GetSession(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	s, err := h.Store.Sessions.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load failed"})
	}
	return c.JSON(http.StatusOK, s)
}

type reserveRequest struct {
	AmountCents int64 `json:"amount_cents"`
}

// CreateReservation handles POST /v1/sessions/:id/reservations. A full
// class returns 409; the client can join the waitlist instead.
func (h *BookingHandler) CreateReservation(c echo.Context) error {
	sessionID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var req reserveRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.AmountCents < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "amount_cents must not be negative"})
	}

	res := &model.Reservation{
		SessionID:   sessionID,
		ClientID:    clientID(c),
		Status:      model.ReservationConfirmed,
		AmountCents: req.AmountCents,
	}
	if err := h.Store.Reservations.Create(c.Request().Context(), res); err != nil {
		switch {
		case errors.Is(err, repository.ErrSessionNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found"})
		case errors.Is(err, repository.ErrCapacityExceeded):
			return c.JSON(http.StatusConflict, echo.Map{"error": "class is full", "hint": "join the waitlist"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "booking failed"})
		}
	}
	return c.JSON(http.StatusCreated, res)
}

// ListReservations handles GET /v1/clients/reservations.
func (h *BookingHandler) ListReservations(c echo.Context) error {
	reservations, err := h.Store.Reservations.ListByClient(c.Request().Context(), clientID(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": reservations})
}

// JoinWaitlist handles POST /v1/sessions/:id/waitlist.
func (h *BookingHandler) JoinWaitlist(c echo.Context) error {
	sessionID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	entry, err := h.Store.Waitlist.Join(c.Request().Context(), sessionID, clientID(c))
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrSessionNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found"})
		case errors.Is(err, repository.ErrDuplicateWaitlistEntry):
			return c.JSON(http.StatusConflict, echo.Map{"error": "already on the waitlist"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "join failed"})
		}
	}
	return c.JSON(http.StatusCreated, entry)
}

// AcceptClaim handles POST /v1/waitlist/claims/:ref/accept. The claim
// must still be live: offered to this client and not yet expired. An
// expired or consumed claim returns 409.
func (h *BookingHandler) AcceptClaim(c echo.Context) error {
	ref := c.Param("ref")
	if ref == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid claim reference"})
	}

	res, err := h.Store.AcceptClaim(c.Request().Context(), ref, clientID(c), time.Now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrClaimNotLive):
			return c.JSON(http.StatusGone, echo.Map{"error": "claim is no longer available"})
		case errors.Is(err, repository.ErrForbidden):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		case errors.Is(err, repository.ErrSessionNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found"})
		case errors.Is(err, repository.ErrCapacityExceeded):
			return c.JSON(http.StatusConflict, echo.Map{"error": "class is full again"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "claim failed"})
		}
	}
	return c.JSON(http.StatusCreated, res)
}
