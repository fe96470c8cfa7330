package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/stamin-up/service-requests/internal/application"
	requestDomain "github.com/stamin-up/service-requests/internal/domain/request"
	"github.com/stamin-up/service-requests/pkg/auth"
	"github.com/stamin-up/service-requests/pkg/middleware"
	"github.com/stamin-up/service-requests/pkg/response"
)

// RequestHandler handles HTTP requests for service-request operations.
type RequestHandler struct {
	service *application.RequestService
}

// NewRequestHandler creates a new RequestHandler.
func NewRequestHandler(service *application.RequestService) *RequestHandler {
	return &RequestHandler{service: service}
}

// RegisterRoutes registers all request routes on the given router group.
func (h *RequestHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)

	requests := r.Group("/api/v1/requests")
	requests.Use(authMW)
	{
		requests.POST("", middleware.RequireRole(auth.RoleClient), h.CreateRequest)
		requests.GET("", h.ListRequests)
		requests.GET("/:id", h.GetRequest)
		requests.POST("/:id/accept", middleware.RequireRole(auth.RoleProvider), h.AcceptRequest)
		requests.POST("/:id/reject", middleware.RequireRole(auth.RoleProvider), h.RejectRequest)
		requests.POST("/:id/propose-date", middleware.RequireRole(auth.RoleProvider), h.ProposeDate)
		requests.PATCH("/:id", middleware.RequireRole(auth.RoleProvider), h.EditRequest)
		requests.POST("/:id/start", middleware.RequireRole(auth.RoleProvider), h.StartService)
		requests.POST("/:id/complete", middleware.RequireRole(auth.RoleProvider), h.CompleteService)
		requests.POST("/:id/cancel", h.CancelRequest)
		requests.POST("/:id/rate", middleware.RequireRole(auth.RoleClient), h.RateService)
		requests.POST("/:id/report", h.FileReport)
	}
}

// CreateRequest handles POST /api/v1/requests.
func (h *RequestHandler) CreateRequest(c *gin.Context) {
	clientID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var input application.CreateRequestInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.CreateRequest(c.Request.Context(), clientID, input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// ListRequests handles GET /api/v1/requests. Clients see their own
// requests, providers see their assigned queue.
func (h *RequestHandler) ListRequests(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	role, ok := middleware.GetUserRole(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	filter, ok := parseStatusFilter(c)
	if !ok {
		return
	}
	page, limit := parsePagination(c)

	switch role {
	case auth.RoleProvider:
		result, err := h.service.GetProviderRequests(c.Request.Context(), userID, filter, page, limit)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)

	default:
		result, err := h.service.GetClientRequests(c.Request.Context(), userID, filter, page, limit)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)
	}
}

// GetRequest handles GET /api/v1/requests/:id.
func (h *RequestHandler) GetRequest(c *gin.Context) {
	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid request ID")
		return
	}

	result, err := h.service.GetRequest(c.Request.Context(), requestID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// AcceptRequest handles POST /api/v1/requests/:id/accept.
func (h *RequestHandler) AcceptRequest(c *gin.Context) {
	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid request ID")
		return
	}

	result, err := h.service.AcceptRequest(c.Request.Context(), requestID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// RejectRequest handles POST /api/v1/requests/:id/reject.
func (h *RequestHandler) RejectRequest(c *gin.Context) {
	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid request ID")
		return
	}

	var body struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.RejectRequest(c.Request.Context(), requestID, body.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// ProposeDate handles POST /api/v1/requests/:id/propose-date.
func (h *RequestHandler) ProposeDate(c *gin.Context) {
	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid request ID")
		return
	}

	var body struct {
		NewDate time.Time `json:"new_date" binding:"required"`
		Note    string    `json:"note"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.ProposeDate(c.Request.Context(), requestID, body.NewDate, body.Note)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// EditRequest handles PATCH /api/v1/requests/:id.
func (h *RequestHandler) EditRequest(c *gin.Context) {
	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid request ID")
		return
	}

	var input application.EditRequestInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.EditRequest(c.Request.Context(), requestID, input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// StartService handles POST /api/v1/requests/:id/start.
func (h *RequestHandler) StartService(c *gin.Context) {
	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid request ID")
		return
	}

	result, err := h.service.StartService(c.Request.Context(), requestID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// CompleteService handles POST /api/v1/requests/:id/complete.
func (h *RequestHandler) CompleteService(c *gin.Context) {
	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid request ID")
		return
	}

	result, err := h.service.CompleteService(c.Request.Context(), requestID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// CancelRequest handles POST /api/v1/requests/:id/cancel.
func (h *RequestHandler) CancelRequest(c *gin.Context) {
	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid request ID")
		return
	}

	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&body)

	result, err := h.service.CancelRequest(c.Request.Context(), requestID, userID, body.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// RateService handles POST /api/v1/requests/:id/rate.
func (h *RequestHandler) RateService(c *gin.Context) {
	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid request ID")
		return
	}

	clientID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body struct {
		Value   int    `json:"value" binding:"required"`
		Comment string `json:"comment"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	rating, err := h.service.RateService(c.Request.Context(), requestID, clientID, body.Value, body.Comment)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, rating)
}

// FileReport handles POST /api/v1/requests/:id/report.
func (h *RequestHandler) FileReport(c *gin.Context) {
	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid request ID")
		return
	}

	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body struct {
		Category    string `json:"category" binding:"required"`
		Description string `json:"description" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	report, err := h.service.FileReport(c.Request.Context(), requestID, userID, body.Category, body.Description)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, report)
}

// parseStatusFilter reads the optional ?status= query parameter. On an
// unrecognized status it writes a 400 response and returns ok=false.
func parseStatusFilter(c *gin.Context) (requestDomain.ListFilter, bool) {
	raw := c.Query("status")
	if raw == "" {
		return requestDomain.ListFilter{}, true
	}

	status, err := requestDomain.ParseRequestStatus(raw)
	if err != nil {
		response.BadRequest(c, err.Error())
		return requestDomain.ListFilter{}, false
	}
	return requestDomain.ListFilter{Status: status}, true
}

// parsePagination extracts page and limit query parameters with defaults.
func parsePagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	return page, limit
}
