package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/threadline/production-tracker/catalog"
	"github.com/threadline/production-tracker/engine"
	"github.com/threadline/production-tracker/storage"
	"github.com/threadline/production-tracker/tracker"
	"github.com/threadline/production-tracker/types"
)

type createOrderReq struct {
	CustomerName string `json:"customer_name" binding:"required"`
	CreatedBy    string `json:"created_by" binding:"required"`
}

type addProductReq struct {
	ProductID   string   `json:"product_id" binding:"required"`
	Name        string   `json:"name" binding:"required"`
	Quantity    int      `json:"quantity" binding:"required"`
	WorkflowIDs []string `json:"workflow_ids" binding:"required"`
}

type assignEmployeesReq struct {
	EmployeeIDs []string `json:"employee_ids"`
}

type updateProgressReq struct {
	Status            string `json:"status" binding:"required"`
	CompletedQuantity int    `json:"completed_quantity"`
}

func (s *Server) listWorkflows(c *gin.Context) {
	defs, err := s.tracker.Workflows()
	if err != nil {
		c.JSON(mapErrorToStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, defs)
}

func (s *Server) createOrder(c *gin.Context) {
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	order, err := s.tracker.CreateOrder(c, req.CustomerName, req.CreatedBy)
	if err != nil {
		c.JSON(mapErrorToStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (s *Server) listOrders(c *gin.Context) {
	orders, err := s.tracker.ListOrders(c)
	if err != nil {
		c.JSON(mapErrorToStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (s *Server) getOrder(c *gin.Context) {
	order, err := s.tracker.GetOrder(c, c.Param("id"))
	if err != nil {
		c.JSON(mapErrorToStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, order)
}

func (s *Server) getCompletion(c *gin.Context) {
	summary, err := s.tracker.Completion(c, c.Param("id"))
	if err != nil {
		c.JSON(mapErrorToStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) addProduct(c *gin.Context) {
	var req addProductReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	order, err := s.tracker.AddProduct(c, c.Param("id"), engine.AddProduct{
		ProductID:   req.ProductID,
		Name:        req.Name,
		Quantity:    req.Quantity,
		WorkflowIDs: req.WorkflowIDs,
	})
	if err != nil {
		c.JSON(mapErrorToStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (s *Server) assignEmployees(c *gin.Context) {
	stepID, err := strconv.Atoi(c.Param("stepID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid step id"})
		return
	}
	var req assignEmployeesReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	order, err := s.tracker.AssignEmployees(c, c.Param("id"), engine.AssignEmployees{
		ProductID:   c.Param("productID"),
		StepID:      stepID,
		EmployeeIDs: req.EmployeeIDs,
	})
	if err != nil {
		c.JSON(mapErrorToStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, order)
}

func (s *Server) updateProgress(c *gin.Context) {
	stepID, err := strconv.Atoi(c.Param("stepID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid step id"})
		return
	}
	var req updateProgressReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	order, err := s.tracker.UpdateProgress(c, c.Param("id"), engine.UpdateProgress{
		ProductID:         c.Param("productID"),
		StepID:            stepID,
		Status:            types.StepStatus(req.Status),
		CompletedQuantity: req.CompletedQuantity,
	})
	if err != nil {
		c.JSON(mapErrorToStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, order)
}

// mapErrorToStatus translates typed tracker/engine/storage errors to
// HTTP statuses: missing references are 404, collisions and stale
// writes 409, everything else caller misuse at 400.
func mapErrorToStatus(err error) int {
	switch {
	case errors.Is(err, storage.ErrOrderNotFound),
		errors.Is(err, engine.ErrProductNotFound),
		errors.Is(err, engine.ErrStepNotFound),
		errors.Is(err, engine.ErrUnknownWorkflow),
		errors.Is(err, engine.ErrUnknownEmployee),
		errors.Is(err, catalog.ErrWorkflowNotFound),
		errors.Is(err, catalog.ErrEmployeeNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrDuplicateProduct),
		errors.Is(err, storage.ErrOrderExists),
		errors.Is(err, storage.ErrVersionConflict):
		return http.StatusConflict
	case errors.Is(err, tracker.ErrReferenceDataNotLoaded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}
