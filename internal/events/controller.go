package events

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"municipal/internal/shared/middleware"
	"municipal/internal/shared/utils/response"
	"municipal/pkg/logger"
)

type Controller interface {
	CreateEvent(c *gin.Context)
	GetEvent(c *gin.Context)
	GetAllEvents(c *gin.Context)
	UpdateEvent(c *gin.Context)
	DeleteEvent(c *gin.Context)

	ListZones(c *gin.Context)
	CreateZone(c *gin.Context)
	UpdateZone(c *gin.Context)
	DeleteZone(c *gin.Context)
}

type controller struct {
	service Service
}

func NewController(service Service) Controller {
	return &controller{service: service}
}

func (ctrl *controller) CreateEvent(c *gin.Context) {
	var req CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	actor, _ := middleware.CurrentPrincipal(c)
	event, err := ctrl.service.CreateEvent(c.Request.Context(), actor, req)
	if err != nil {
		ctrl.handleError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusCreated, "Event created successfully", event, nil)
}

func (ctrl *controller) GetEvent(c *gin.Context) {
	eventID, ok := parseID(c, "id", "Invalid event ID")
	if !ok {
		return
	}

	event, err := ctrl.service.GetEventByID(c.Request.Context(), eventID)
	if err != nil {
		ctrl.handleError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Event retrieved successfully", event, nil)
}

func (ctrl *controller) GetAllEvents(c *gin.Context) {
	var query EventListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid query parameters", nil, err.Error())
		return
	}

	events, err := ctrl.service.GetAllEvents(c.Request.Context(), query)
	if err != nil {
		ctrl.handleError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Events retrieved successfully", events, nil)
}

func (ctrl *controller) UpdateEvent(c *gin.Context) {
	eventID, ok := parseID(c, "id", "Invalid event ID")
	if !ok {
		return
	}

	var req UpdateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	actor, _ := middleware.CurrentPrincipal(c)
	event, err := ctrl.service.UpdateEvent(c.Request.Context(), eventID, actor, req)
	if err != nil {
		ctrl.handleError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Event updated successfully", event, nil)
}

func (ctrl *controller) DeleteEvent(c *gin.Context) {
	eventID, ok := parseID(c, "id", "Invalid event ID")
	if !ok {
		return
	}

	if err := ctrl.service.DeleteEvent(c.Request.Context(), eventID); err != nil {
		ctrl.handleError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Event deleted successfully", nil, nil)
}

func (ctrl *controller) ListZones(c *gin.Context) {
	eventID, ok := parseID(c, "id", "Invalid event ID")
	if !ok {
		return
	}

	zones, err := ctrl.service.ListZones(c.Request.Context(), eventID)
	if err != nil {
		ctrl.handleError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Zones retrieved successfully", zones, nil)
}

func (ctrl *controller) CreateZone(c *gin.Context) {
	eventID, ok := parseID(c, "id", "Invalid event ID")
	if !ok {
		return
	}

	var req CreateZoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	zone, err := ctrl.service.CreateZone(c.Request.Context(), eventID, req)
	if err != nil {
		ctrl.handleError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusCreated, "Zone created successfully", zone, nil)
}

func (ctrl *controller) UpdateZone(c *gin.Context) {
	eventID, ok := parseID(c, "id", "Invalid event ID")
	if !ok {
		return
	}
	zoneID, ok := parseID(c, "zoneId", "Invalid zone ID")
	if !ok {
		return
	}

	var req UpdateZoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	zone, err := ctrl.service.UpdateZone(c.Request.Context(), eventID, zoneID, req)
	if err != nil {
		ctrl.handleError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Zone updated successfully", zone, nil)
}

func (ctrl *controller) DeleteZone(c *gin.Context) {
	eventID, ok := parseID(c, "id", "Invalid event ID")
	if !ok {
		return
	}
	zoneID, ok := parseID(c, "zoneId", "Invalid zone ID")
	if !ok {
		return
	}

	if err := ctrl.service.DeleteZone(c.Request.Context(), eventID, zoneID); err != nil {
		ctrl.handleError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Zone deleted successfully", nil, nil)
}

func (ctrl *controller) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrEventNotFound), errors.Is(err, ErrZoneNotFound):
		response.RespondJSON(c, "error", http.StatusNotFound, err.Error(), nil, nil)
	case errors.Is(err, ErrZonesDisabled), errors.Is(err, ErrZoneNameTaken), errors.Is(err, ErrModeLocked):
		response.RespondJSON(c, "error", http.StatusConflict, err.Error(), nil, nil)
	default:
		logger.GetDefault().LogHTTPError(c, err, http.StatusInternalServerError)
		response.RespondJSON(c, "error", http.StatusInternalServerError, "Internal server error", nil, nil)
	}
}

func parseID(c *gin.Context, param, message string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, message, nil, err.Error())
		return uuid.Nil, false
	}
	return id, true
}
