package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/renholm/studio-class-booking/internal/model"
	"github.com/renholm/studio-class-booking/internal/repository"
	"github.com/renholm/studio-class-booking/internal/service"
)

// StudioHandler exposes session management for studio operators:
// scheduling, schedule and capacity edits, and whole-session
// cancellation.
type StudioHandler struct {
	Sessions *repository.SessionRepo
	Cancels  *service.SessionCancellationService
}

// NewStudioHandler builds a StudioHandler.
func NewStudioHandler(sessions *repository.SessionRepo, cancels *service.SessionCancellationService) *StudioHandler {
	return &StudioHandler{Sessions: sessions, Cancels: cancels}
}

type sessionRequest struct {
	Title       string    `json:"title"`
	TeacherName string    `json:"teacher_name"`
	Location    string    `json:"location"`
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`
	Capacity    uint32    `json:"capacity"`
}

func (req *sessionRequest) validate() string {
	switch {
	case req.Title == "":
		return "title is required"
	case req.Capacity == 0:
		return "capacity must be positive"
	case req.StartsAt.IsZero() || req.EndsAt.IsZero():
		return "starts_at and ends_at are required"
	case !req.EndsAt.After(req.StartsAt):
		return "ends_at must be after starts_at"
	case !req.StartsAt.After(time.Now().UTC()):
		return "starts_at must be in the future"
	}
	return ""
}

// CreateSession handles POST /v1/studio/sessions.
func (h *StudioHandler) CreateSession(c echo.Context) error {
	var req sessionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if msg := req.validate(); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}

	s := &model.ClassSession{
		StudioID:    studioID(c),
		Title:       req.Title,
		TeacherName: req.TeacherName,
		Location:    req.Location,
		StartsAt:    req.StartsAt.UTC(),
		EndsAt:      req.EndsAt.UTC(),
		Capacity:    req.Capacity,
	}
	if err := h.Sessions.Create(c.Request().Context(), s); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create failed"})
	}
	return c.JSON(http.StatusCreated, s)
}

// UpdateSession handles PATCH /v1/studio/sessions/:id. Capacity can only
// shrink down to the current confirmed count; a reduction below it is
// rejected with 409.
func (h *StudioHandler) UpdateSession(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var req sessionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if msg := req.validate(); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}

	s := &model.ClassSession{
		Title:       req.Title,
		TeacherName: req.TeacherName,
		Location:    req.Location,
		StartsAt:    req.StartsAt.UTC(),
		EndsAt:      req.EndsAt.UTC(),
		Capacity:    req.Capacity,
	}
	err = h.Sessions.UpdateSchedule(c.Request().Context(), id, studioID(c), s)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrSessionNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found"})
		case errors.Is(err, repository.ErrForbidden):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		case errors.Is(err, repository.ErrCapacityExceeded):
			return c.JSON(http.StatusConflict, echo.Map{"error": "capacity below confirmed reservations"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
		}
	}
	return c.JSON(http.StatusOK, s)
}

// CancelSession handles DELETE /v1/studio/sessions/:id. Refunds for
// every paid reservation must clear before anything is deleted; a 502
// response lists the refunds that failed and means the session is still
// fully intact apart from the refunds that did go through.
func (h *StudioHandler) CancelSession(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	result, err := h.Cancels.CancelClassSession(c.Request().Context(), id, studioID(c))
	if err != nil {
		var bulkErr *service.BulkRefundError
		switch {
		case errors.Is(err, repository.ErrSessionNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found"})
		case errors.Is(err, repository.ErrForbidden):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		case errors.As(err, &bulkErr):
			return c.JSON(http.StatusBadGateway, echo.Map{
				"error":           "session cancellation aborted",
				"message":         "one or more refunds failed; the session was not cancelled",
				"refund_failures": bulkErr.Failures,
			})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cancellation failed"})
		}
	}
	return c.JSON(http.StatusOK, result)
}
