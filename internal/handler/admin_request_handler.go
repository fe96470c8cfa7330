package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/stamin-up/service-requests/internal/application"
	"github.com/stamin-up/service-requests/pkg/auth"
	"github.com/stamin-up/service-requests/pkg/middleware"
	"github.com/stamin-up/service-requests/pkg/response"
)

// AdminRequestHandler handles admin HTTP requests for request management.
type AdminRequestHandler struct {
	service *application.RequestService
}

// NewAdminRequestHandler creates a new AdminRequestHandler.
func NewAdminRequestHandler(service *application.RequestService) *AdminRequestHandler {
	return &AdminRequestHandler{service: service}
}

// RegisterRoutes registers admin request routes.
func (h *AdminRequestHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)
	adminRole := middleware.RequireRole(auth.RoleAdmin)

	admin := r.Group("/api/v1/admin")
	admin.Use(authMW, adminRole)
	{
		admin.GET("/requests", h.ListRequests)
		admin.GET("/stats/requests", h.RequestStats)
		admin.POST("/requests/:id/reports/:reportId/resolve", h.ResolveReport)
		admin.POST("/requests/:id/reports/:reportId/dismiss", h.DismissReport)
	}
}

// ListRequests handles GET /api/v1/admin/requests.
func (h *AdminRequestHandler) ListRequests(c *gin.Context) {
	filter, ok := parseStatusFilter(c)
	if !ok {
		return
	}
	page, limit := parsePagination(c)

	requests, total, err := h.service.ListAllRequests(c.Request.Context(), filter, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, requests, total, page, limit)
}

// RequestStats handles GET /api/v1/admin/stats/requests.
func (h *AdminRequestHandler) RequestStats(c *gin.Context) {
	stats, err := h.service.GetRequestStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, stats)
}

// ResolveReport handles POST /api/v1/admin/requests/:id/reports/:reportId/resolve.
func (h *AdminRequestHandler) ResolveReport(c *gin.Context) {
	requestID, reportID, ok := parseReportIDs(c)
	if !ok {
		return
	}

	if err := h.service.ResolveReport(c.Request.Context(), requestID, reportID); err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.service.GetRequest(c.Request.Context(), requestID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// DismissReport handles POST /api/v1/admin/requests/:id/reports/:reportId/dismiss.
func (h *AdminRequestHandler) DismissReport(c *gin.Context) {
	requestID, reportID, ok := parseReportIDs(c)
	if !ok {
		return
	}

	if err := h.service.DismissReport(c.Request.Context(), requestID, reportID); err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.service.GetRequest(c.Request.Context(), requestID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

func parseReportIDs(c *gin.Context) (requestID, reportID uuid.UUID, ok bool) {
	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid request ID")
		return uuid.Nil, uuid.Nil, false
	}

	reportID, err = uuid.Parse(c.Param("reportId"))
	if err != nil {
		response.BadRequest(c, "invalid report ID")
		return uuid.Nil, uuid.Nil, false
	}

	return requestID, reportID, true
}
