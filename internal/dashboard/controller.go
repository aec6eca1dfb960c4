package dashboard

import (
	"net/http"

	"municipal/internal/shared/middleware"
	"municipal/internal/shared/utils/response"
	"municipal/pkg/logger"

	"github.com/gin-gonic/gin"
)

type Controller interface {
	GetOverview(c *gin.Context)
}

type controller struct {
	service Service
}

func NewController(service Service) Controller {
	return &controller{service: service}
}

func (ctrl *controller) GetOverview(c *gin.Context) {
	var (
		overview *Overview
		err      error
	)
	if caller, ok := middleware.CurrentPrincipal(c); ok {
		overview, err = ctrl.service.Overview(c.Request.Context(), &caller)
	} else {
		overview, err = ctrl.service.Overview(c.Request.Context(), nil)
	}
	if err != nil {
		logger.GetDefault().LogHTTPError(c, err, http.StatusInternalServerError)
		response.RespondJSON(c, "error", http.StatusInternalServerError, "Failed to load dashboard", nil, nil)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Dashboard retrieved successfully", overview, nil)
}
