package bookings

import (
	"bytes"
	"errors"
	"net/http"
	"time"

	"municipal/internal/capacity"
	"municipal/internal/events"
	"municipal/internal/shared/middleware"
	"municipal/internal/shared/utils/response"
	"municipal/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Controller interface {
	CreateBooking(c *gin.Context)
	GetBooking(c *gin.Context)
	ListBookings(c *gin.Context)
	UpdateBooking(c *gin.Context)
	ConfirmBooking(c *gin.Context)
	CancelBooking(c *gin.Context)
	DeleteBooking(c *gin.Context)
	ExportBookings(c *gin.Context)
	GetReceipt(c *gin.Context)
	GetAvailability(c *gin.Context)
}

type controller struct {
	service Service
	now     func() time.Time
}

func NewController(service Service) Controller {
	return &controller{service: service, now: time.Now}
}

// CreateBooking handles POST /bookings. Staff create on anyone's behalf;
// everybody else books for themselves.
func (ctrl *controller) CreateBooking(c *gin.Context) {
	var req CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	caller, _ := middleware.CurrentPrincipal(c)

	var (
		booking *BookingResponse
		err     error
	)
	if caller.CanManage() {
		booking, err = ctrl.service.CreatePrivileged(c.Request.Context(), req.Privileged(caller))
	} else {
		booking, err = ctrl.service.CreateSelfService(c.Request.Context(), req.SelfService(caller))
	}
	if err != nil {
		ctrl.handleError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusCreated, "Booking created successfully", booking, nil)
}

func (ctrl *controller) GetBooking(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	caller, _ := middleware.CurrentPrincipal(c)
	booking, err := ctrl.service.Get(c.Request.Context(), id, caller)
	if err != nil {
		ctrl.handleError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Booking retrieved successfully", booking, nil)
}

func (ctrl *controller) ListBookings(c *gin.Context) {
	var query BookingListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid query parameters", nil, err.Error())
		return
	}

	caller, _ := middleware.CurrentPrincipal(c)
	page, err := ctrl.service.List(c.Request.Context(), query.Filter(), caller)
	if err != nil {
		ctrl.handleError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Bookings retrieved successfully", page, nil)
}

func (ctrl *controller) UpdateBooking(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req UpdateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	caller, _ := middleware.CurrentPrincipal(c)
	booking, err := ctrl.service.Update(c.Request.Context(), id, req.Privileged(caller))
	if err != nil {
		ctrl.handleError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Booking updated successfully", booking, nil)
}

func (ctrl *controller) ConfirmBooking(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	caller, _ := middleware.CurrentPrincipal(c)
	booking, err := ctrl.service.Confirm(c.Request.Context(), id, caller)
	if err != nil {
		ctrl.handleError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Booking confirmed successfully", booking, nil)
}

func (ctrl *controller) CancelBooking(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	caller, _ := middleware.CurrentPrincipal(c)
	booking, err := ctrl.service.Cancel(c.Request.Context(), id, caller)
	if err != nil {
		ctrl.handleError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Booking cancelled successfully", booking, nil)
}

func (ctrl *controller) DeleteBooking(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	caller, _ := middleware.CurrentPrincipal(c)
	if err := ctrl.service.Delete(c.Request.Context(), id, caller); err != nil {
		ctrl.handleError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Booking deleted successfully", nil, nil)
}

// ExportBookings streams the filtered bookings as CSV
func (ctrl *controller) ExportBookings(c *gin.Context) {
	var query BookingListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid query parameters", nil, err.Error())
		return
	}

	caller, _ := middleware.CurrentPrincipal(c)

	var buf bytes.Buffer
	if err := ctrl.service.Export(c.Request.Context(), query.Filter(), caller, &buf); err != nil {
		ctrl.handleError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+ExportFilename(ctrl.now())+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (ctrl *controller) GetReceipt(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	caller, _ := middleware.CurrentPrincipal(c)

	var buf bytes.Buffer
	filename, err := ctrl.service.Receipt(c.Request.Context(), id, caller, &buf)
	if err != nil {
		ctrl.handleError(c, err)
		return
	}

	c.Header("Content-Disposition", `inline; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

// GetAvailability handles GET /events/:id/availability
func (ctrl *controller) GetAvailability(c *gin.Context) {
	eventID, ok := parseID(c)
	if !ok {
		return
	}

	availability, err := ctrl.service.Availability(c.Request.Context(), eventID)
	if err != nil {
		ctrl.handleError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Availability retrieved successfully", availability, nil)
}

func (ctrl *controller) handleError(c *gin.Context, err error) {
	if rej, ok := capacity.AsRejection(err); ok {
		fieldErr := response.FieldError{
			Field:   rej.Field,
			Code:    rej.Code(),
			Message: rej.Error(),
		}
		if errors.Is(rej, capacity.ErrInsufficientCapacity) {
			available := rej.Available
			fieldErr.Available = &available
		}
		response.RespondFieldError(c, "Booking rejected", fieldErr)
		return
	}

	switch {
	case errors.Is(err, ErrBookingNotFound):
		response.RespondJSON(c, "error", http.StatusNotFound, "Booking not found", nil, nil)
	case errors.Is(err, events.ErrEventNotFound):
		response.RespondJSON(c, "error", http.StatusNotFound, "Event not found", nil, nil)
	case errors.Is(err, ErrForbidden):
		response.RespondJSON(c, "error", http.StatusForbidden, "Insufficient permissions", nil, nil)
	case errors.Is(err, ErrInvalidTransition):
		response.RespondJSON(c, "error", http.StatusConflict, err.Error(), nil, nil)
	default:
		logger.GetDefault().LogHTTPError(c, err, http.StatusInternalServerError)
		response.RespondJSON(c, "error", http.StatusInternalServerError, "Internal server error", nil, nil)
	}
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid ID", nil, nil)
		return uuid.Nil, false
	}
	return id, true
}
