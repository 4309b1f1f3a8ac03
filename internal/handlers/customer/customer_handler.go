// internal/handlers/customer/customer_handler.go
package customer

import (
	"net/http"
	"strconv"

	"leadcrm-service/internal/domain/auth"
	"leadcrm-service/internal/domain/customer"
	"leadcrm-service/internal/middleware"
	"leadcrm-service/internal/pkg/response"
	service "leadcrm-service/internal/service/customer"

	"github.com/gin-gonic/gin"
)

type CustomerHandler struct {
	customerService *service.Service
}

func NewCustomerHandler(customerService *service.Service) *CustomerHandler {
	return &CustomerHandler{customerService: customerService}
}

// CreateCustomer creates a customer record. A detected duplicate without a
// duplicate_action comes back as 409 with the match report; the client
// re-submits with the chosen action.
func (h *CustomerHandler) CreateCustomer(c *gin.Context) {
	var req customer.CreateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	result, err := h.customerService.CreateCustomer(c.Request.Context(), &req, middleware.ActorName(c))
	if err != nil {
		response.FromError(c, err, "failed to create customer")
		return
	}

	if result.Status == service.StatusDuplicatePrompt {
		response.Error(c, http.StatusConflict, "duplicate detected, action required", nil, result)
		return
	}
	status, message := createStatus(result)
	response.Success(c, status, message, result)
}

// GetCustomer retrieves a customer by ID.
func (h *CustomerHandler) GetCustomer(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid customer ID", err)
		return
	}

	rec, err := h.customerService.GetCustomer(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err, "customer not found")
		return
	}
	response.Success(c, http.StatusOK, "customer retrieved", rec)
}

// ListCustomers returns a filtered, paginated page of customers. Agents are
// pinned to their own team; managers and admins may query any team.
func (h *CustomerHandler) ListCustomers(c *gin.Context) {
	var filters customer.ListFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid filters", err)
		return
	}

	if middleware.UserRole(c) == string(auth.RoleAgent) {
		if team := middleware.UserTeam(c); team != "" {
			filters.Team = team
		}
	}

	page, err := h.customerService.ListCustomers(c.Request.Context(), &filters)
	if err != nil {
		response.FromError(c, err, "failed to list customers")
		return
	}
	response.Success(c, http.StatusOK, "customers retrieved", page)
}

// UpdateCustomer applies a partial update. A conflicting edit comes back as
// 409 with the match report and no write happens.
func (h *CustomerHandler) UpdateCustomer(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid customer ID", err)
		return
	}

	var req customer.UpdateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	result, err := h.customerService.UpdateCustomer(c.Request.Context(), id, &req, middleware.ActorName(c))
	if err != nil {
		response.FromError(c, err, "failed to update customer")
		return
	}

	if result.Status == service.StatusDuplicatePrompt {
		response.Error(c, http.StatusConflict, "update collides with an existing record", nil, result)
		return
	}
	response.Success(c, http.StatusOK, "customer updated", result)
}

// DeleteCustomer removes a customer and its dependent rows.
func (h *CustomerHandler) DeleteCustomer(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid customer ID", err)
		return
	}

	if err := h.customerService.DeleteCustomer(c.Request.Context(), id); err != nil {
		response.FromError(c, err, "failed to delete customer")
		return
	}
	response.Success(c, http.StatusOK, "customer deleted", nil)
}

// GetChangeLog returns the audit trail for one customer.
func (h *CustomerHandler) GetChangeLog(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid customer ID", err)
		return
	}

	entries, err := h.customerService.GetChangeLog(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err, "failed to load change log")
		return
	}
	response.Success(c, http.StatusOK, "change log retrieved", entries)
}

// GetStats returns dashboard counters, optionally scoped to a queue.
func (h *CustomerHandler) GetStats(c *gin.Context) {
	stats, err := h.customerService.GetStats(c.Request.Context(), c.Query("queue"))
	if err != nil {
		response.FromError(c, err, "failed to load stats")
		return
	}
	response.Success(c, http.StatusOK, "stats retrieved", stats)
}

// UploadCustomers validates a bulk payload and returns a parked plan:
// clean rows, duplicate candidates awaiting decisions, rejected rows.
func (h *CustomerHandler) UploadCustomers(c *gin.Context) {
	var req customer.UploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	plan, err := h.customerService.PlanUpload(c.Request.Context(), &req)
	if err != nil {
		response.FromError(c, err, "failed to plan upload")
		return
	}
	response.Success(c, http.StatusOK, "upload planned", plan)
}

// ConfirmUpload commits a parked upload plan with per-duplicate decisions.
func (h *CustomerHandler) ConfirmUpload(c *gin.Context) {
	var req customer.ConfirmUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	result, err := h.customerService.ConfirmUpload(c.Request.Context(), &req, middleware.ActorName(c))
	if err != nil {
		response.FromError(c, err, "failed to confirm upload")
		return
	}
	response.Success(c, http.StatusOK, "upload committed", result)
}

func pathID(c *gin.Context) (int64, error) {
	return strconv.ParseInt(c.Param("id"), 10, 64)
}

func createStatus(result *service.Result) (int, string) {
	switch result.Status {
	case service.StatusCreated:
		return http.StatusCreated, "customer created"
	case service.StatusUpdated:
		return http.StatusOK, "existing customer updated"
	case service.StatusSkipped:
		return http.StatusOK, "duplicate skipped"
	default:
		return http.StatusOK, "request processed"
	}
}
