package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/renholm/studio-class-booking/internal/repository"
	"github.com/renholm/studio-class-booking/internal/service"
)

// CancellationHandler exposes the client cancellation endpoint.
type CancellationHandler struct {
	Cancellations *service.CancellationService
}

// NewCancellationHandler builds a CancellationHandler.
func NewCancellationHandler(svc *service.CancellationService) *CancellationHandler {
	return &CancellationHandler{Cancellations: svc}
}

// CancelReservation handles POST /v1/reservations/:id/cancel. On success
// it returns the refund tier and the amount sent back. The refund and
// the cancellation commit together, so a gateway failure surfaces as 502
// with the reservation left intact.
func (h *CancellationHandler) CancelReservation(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	result, err := h.Cancellations.CancelReservation(c.Request().Context(), id, clientID(c))
	if err != nil {
		var gwErr *service.RefundGatewayError
		switch {
		case errors.Is(err, repository.ErrReservationNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		case errors.Is(err, repository.ErrForbidden):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		case errors.Is(err, repository.ErrAlreadyCancelled):
			return c.JSON(http.StatusConflict, echo.Map{"error": "reservation already cancelled"})
		case errors.Is(err, service.ErrClassAlreadyStarted):
			return c.JSON(http.StatusConflict, echo.Map{"error": "class already started"})
		case errors.Is(err, service.ErrCancellationWindowClosed):
			return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "cancellation window closed"})
		case errors.Is(err, service.ErrRefundUnprocessable):
			return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "refund cannot be processed automatically"})
		case errors.As(err, &gwErr):
			return c.JSON(http.StatusBadGateway, echo.Map{
				"error":   "refund failed",
				"message": "payment gateway did not accept the refund; the reservation is unchanged",
			})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cancellation failed"})
		}
	}
	return c.JSON(http.StatusOK, result)
}
