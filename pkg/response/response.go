package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stamin-up/service-requests/pkg/domain"
)

// envelope is the standard success response body.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
}

// errorBody is the standard error response body.
type errorBody struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Error   string `json:"error"`
}

// paginatedEnvelope is the standard paginated response body.
type paginatedEnvelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Total   int64       `json:"total"`
	Page    int         `json:"page"`
	Limit   int         `json:"limit"`
}

// Success writes a 200 response with the given data.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, envelope{Success: true, Data: data})
}

// Created writes a 201 response with the given data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, envelope{Success: true, Data: data})
}

// Paginated writes a 200 response with paging metadata.
func Paginated(c *gin.Context, items interface{}, total int64, page, limit int) {
	c.JSON(http.StatusOK, paginatedEnvelope{
		Success: true,
		Data:    items,
		Total:   total,
		Page:    page,
		Limit:   limit,
	})
}

// BadRequest writes a 400 response with the given message.
func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, errorBody{
		Success: false,
		Code:    string(domain.CodeValidation),
		Error:   message,
	})
}

// Error maps a domain error to its HTTP status and writes the response.
func Error(c *gin.Context, err error) {
	var de *domain.Error
	if !errors.As(err, &de) {
		c.JSON(http.StatusInternalServerError, errorBody{
			Success: false,
			Code:    "INTERNAL_ERROR",
			Error:   "internal server error",
		})
		return
	}

	c.JSON(statusFor(de.Code), errorBody{
		Success: false,
		Code:    string(de.Code),
		Error:   de.Message,
	})
}

func statusFor(code domain.ErrorCode) int {
	switch code {
	case domain.CodeValidation:
		return http.StatusBadRequest
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeConflict:
		return http.StatusConflict
	case domain.CodeForbidden:
		return http.StatusForbidden
	case domain.CodeUnauthorized:
		return http.StatusUnauthorized
	case domain.CodeInvalidState, domain.CodeAlreadyRated, domain.CodeActiveReportExists:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
