package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/newbihanigroup-creator/khaacho-sub004/internal/application"
	"github.com/newbihanigroup-creator/khaacho-sub004/internal/domain"
	"github.com/newbihanigroup-creator/khaacho-sub004/pkg/logging"
	"github.com/newbihanigroup-creator/khaacho-sub004/pkg/middleware"
)

// Handlers contains HTTP handlers for routing and recovery endpoints
type Handlers struct {
	service   *application.RoutingApplicationService
	scheduler *application.RecoveryScheduler
	logger    *logging.Logger
}

// NewHandlers creates new HTTP handlers
func NewHandlers(
	service *application.RoutingApplicationService,
	scheduler *application.RecoveryScheduler,
	logger *logging.Logger,
) *Handlers {
	return &Handlers{
		service:   service,
		scheduler: scheduler,
		logger:    logger,
	}
}

type lineItemRequest struct {
	ProductCode string  `json:"productCode" binding:"required,product_code"`
	Quantity    int     `json:"quantity" binding:"required,gt=0"`
	UnitPrice   float64 `json:"unitPrice" binding:"required,gt=0"`
}

type routeOrderRequest struct {
	OrderID    string            `json:"orderId" binding:"required,order_id"`
	RetailerID string            `json:"retailerId" binding:"required"`
	Items      []lineItemRequest `json:"items" binding:"required,min=1,dive"`
}

// RouteOrder handles POST /api/v1/orders/route
func (h *Handlers) RouteOrder() gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, h.logger.Logger)

		var req routeOrderRequest
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		items := make([]domain.LineItem, 0, len(req.Items))
		for _, item := range req.Items {
			items = append(items, domain.LineItem{
				ProductCode: item.ProductCode,
				Quantity:    item.Quantity,
				UnitPrice:   item.UnitPrice,
			})
		}

		cmd := application.RouteOrderCommand{
			OrderID:    req.OrderID,
			RetailerID: req.RetailerID,
			Items:      items,
		}

		result, err := h.service.RouteOrder(c.Request.Context(), cmd)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusCreated, result)
	}
}

type supplierResponseRequest struct {
	SupplierID string `json:"supplierId" binding:"required,supplier_id"`
}

// AcceptAssignment handles POST /api/v1/assignments/:assignmentId/accept
func (h *Handlers) AcceptAssignment() gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, h.logger.Logger)

		var req supplierResponseRequest
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		cmd := application.SupplierResponseCommand{
			AssignmentID: c.Param("assignmentId"),
			SupplierID:   req.SupplierID,
		}

		result, err := h.service.AcceptAssignment(c.Request.Context(), cmd)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

// RejectAssignment handles POST /api/v1/assignments/:assignmentId/reject
func (h *Handlers) RejectAssignment() gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, h.logger.Logger)

		var req supplierResponseRequest
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		cmd := application.SupplierResponseCommand{
			AssignmentID: c.Param("assignmentId"),
			SupplierID:   req.SupplierID,
		}

		result, err := h.service.RejectAssignment(c.Request.Context(), cmd)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

// GetOrder handles GET /api/v1/orders/:orderId
func (h *Handlers) GetOrder() gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, h.logger.Logger)

		result, err := h.service.GetOrder(c.Request.Context(), application.GetOrderQuery{
			OrderID: c.Param("orderId"),
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

// StartProcessing handles POST /api/v1/orders/:orderId/start-processing
func (h *Handlers) StartProcessing() gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, h.logger.Logger)

		result, err := h.service.StartProcessing(c.Request.Context(), application.StartProcessingCommand{
			OrderID: c.Param("orderId"),
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

// CompleteOrder handles POST /api/v1/orders/:orderId/complete
func (h *Handlers) CompleteOrder() gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, h.logger.Logger)

		result, err := h.service.CompleteOrder(c.Request.Context(), application.CompleteOrderCommand{
			OrderID: c.Param("orderId"),
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

type cancelOrderRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// CancelOrder handles POST /api/v1/orders/:orderId/cancel
func (h *Handlers) CancelOrder() gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, h.logger.Logger)

		var req cancelOrderRequest
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		result, err := h.service.CancelOrder(c.Request.Context(), application.CancelOrderCommand{
			OrderID: c.Param("orderId"),
			Reason:  req.Reason,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

// GetRoutingDecisions handles GET /api/v1/orders/:orderId/decisions
func (h *Handlers) GetRoutingDecisions() gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, h.logger.Logger)

		result, err := h.service.GetRoutingDecisions(c.Request.Context(), application.GetRoutingDecisionQuery{
			OrderID: c.Param("orderId"),
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": result})
	}
}

// GetHealingHistory handles GET /api/v1/orders/:orderId/healing-actions
func (h *Handlers) GetHealingHistory() gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, h.logger.Logger)

		result, err := h.service.GetHealingHistory(c.Request.Context(), application.GetHealingHistoryQuery{
			OrderID: c.Param("orderId"),
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": result})
	}
}

// GetRankingWeights handles GET /api/v1/routing/weights
func (h *Handlers) GetRankingWeights() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, h.service.GetRankingWeights(c.Request.Context()))
	}
}

type updateWeightsRequest struct {
	Reliability float64 `json:"reliability" binding:"required,gt=0,lte=1"`
	Delivery    float64 `json:"delivery" binding:"required,gt=0,lte=1"`
	Response    float64 `json:"response" binding:"required,gt=0,lte=1"`
	Price       float64 `json:"price" binding:"required,gt=0,lte=1"`
	UpdatedBy   string  `json:"updatedBy" binding:"required"`
}

// UpdateRankingWeights handles PUT /api/v1/routing/weights
func (h *Handlers) UpdateRankingWeights() gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, h.logger.Logger)

		var req updateWeightsRequest
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		result, err := h.service.UpdateRankingWeights(c.Request.Context(), application.UpdateWeightsCommand{
			Reliability: req.Reliability,
			Delivery:    req.Delivery,
			Response:    req.Response,
			Price:       req.Price,
			UpdatedBy:   req.UpdatedBy,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

// ListNotifications handles GET /api/v1/notifications
func (h *Handlers) ListNotifications() gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, h.logger.Logger)

		limit := 0
		if raw := c.Query("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				responder.RespondBadRequest("limit must be a positive integer")
				return
			}
			limit = parsed
		}

		result, err := h.service.ListNotifications(c.Request.Context(), limit)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": result})
	}
}

type acknowledgeRequest struct {
	AdminID string `json:"adminId" binding:"required"`
}

// AcknowledgeNotification handles POST /api/v1/notifications/:notificationId/acknowledge
func (h *Handlers) AcknowledgeNotification() gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, h.logger.Logger)

		var req acknowledgeRequest
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		cmd := application.AcknowledgeNotificationCommand{
			NotificationID: c.Param("notificationId"),
			AdminID:        req.AdminID,
		}

		if err := h.service.AcknowledgeNotification(c.Request.Context(), cmd); err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "acknowledged"})
	}
}

// TriggerRecoveryCycle handles POST /api/v1/recovery/trigger
func (h *Handlers) TriggerRecoveryCycle() gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, h.logger.Logger)

		result, err := h.scheduler.TriggerRecoveryCycle(c.Request.Context())
		if err != nil {
			responder.RespondConflict(err.Error())
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

// RecoveryStatus handles GET /api/v1/recovery/status
func (h *Handlers) RecoveryStatus() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"running": h.scheduler.IsRunning(),
		})
	}
}

// StartScheduler handles POST /api/v1/recovery/scheduler/start
func (h *Handlers) StartScheduler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.scheduler.IsRunning() {
			c.JSON(http.StatusOK, gin.H{"message": "Scheduler already running"})
			return
		}
		// The sweep loop must outlive this request
		if err := h.scheduler.Start(context.Background()); err != nil {
			responder := middleware.NewErrorResponder(c, h.logger.Logger)
			responder.RespondInternalError(err)
			return
		}
		h.logger.Info("Recovery scheduler started via API")
		c.JSON(http.StatusOK, gin.H{"message": "Scheduler started"})
	}
}

// StopScheduler handles POST /api/v1/recovery/scheduler/stop
func (h *Handlers) StopScheduler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !h.scheduler.IsRunning() {
			c.JSON(http.StatusOK, gin.H{"message": "Scheduler already stopped"})
			return
		}
		h.scheduler.Stop()
		h.logger.Info("Recovery scheduler stopped via API")
		c.JSON(http.StatusOK, gin.H{"message": "Scheduler stopped"})
	}
}
