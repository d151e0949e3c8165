package orderserver

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/oapi-codegen/runtime"

	orderhttpmapper "github.com/Apurer/order-ledger/internal/domains/orders/adapters/http/mapper"
	orderstypes "github.com/Apurer/order-ledger/internal/domains/orders/application/types"
	"github.com/Apurer/order-ledger/internal/domains/orders/domain"
	ordersports "github.com/Apurer/order-ledger/internal/domains/orders/ports"
)

// IdempotencyKeyHeader carries the client-chosen key for safe create retries.
const IdempotencyKeyHeader = "Idempotency-Key"

// OrderAPI wires HTTP transport with the order ledger service and workflows.
type OrderAPI struct {
	service   ordersports.Service
	workflows ordersports.WorkflowOrchestrator
}

// NewOrderAPI creates an OrderAPI backed by the provided service.
func NewOrderAPI(service ordersports.Service, workflows ordersports.WorkflowOrchestrator) OrderAPI {
	return OrderAPI{service: service, workflows: workflows}
}

// ListOrdersParams are the optional filters of GET /api/orders.
type ListOrdersParams struct {
	UserID   *int64  `form:"userId,omitempty" json:"userId,omitempty"`
	ClientID *int64  `form:"clientId,omitempty" json:"clientId,omitempty"`
	Status   *string `form:"status,omitempty" json:"status,omitempty"`
}

// Post /api/orders
// Create an order
func (api *OrderAPI) CreateOrder(c *gin.Context) {
	var payload orderhttpmapper.CreateOrderRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondBindingError(c, err)
		return
	}
	key := strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader))
	input := orderhttpmapper.ToCreateInput(payload, key)
	order, err := api.createOrder(c.Request.Context(), input)
	if err != nil {
		respondOrderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, orderhttpmapper.FromDomainOrder(order))
}

func (api *OrderAPI) createOrder(ctx context.Context, input orderstypes.CreateOrderInput) (*domain.Order, error) {
	if api.workflows != nil {
		return api.workflows.CreateOrder(ctx, input)
	}
	return api.service.CreateOrder(ctx, input)
}

// Get /api/orders
// Lists orders filtered by user, client and status
func (api *OrderAPI) ListOrders(c *gin.Context) {
	var params ListOrdersParams
	query := c.Request.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "userId", query, &params.UserID); err != nil {
		orderResponder.BadRequest(c, "invalid userId: "+err.Error())
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "clientId", query, &params.ClientID); err != nil {
		orderResponder.BadRequest(c, "invalid clientId: "+err.Error())
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "status", query, &params.Status); err != nil {
		orderResponder.BadRequest(c, "invalid status: "+err.Error())
		return
	}
	orders, err := api.service.ListOrders(c.Request.Context(), orderstypes.ListOrdersInput{
		UserID:   params.UserID,
		ClientID: params.ClientID,
		Status:   params.Status,
	})
	if err != nil {
		respondOrderError(c, err)
		return
	}
	c.JSON(http.StatusOK, orderhttpmapper.FromDomainOrders(orders))
}

// Get /api/orders/:orderId
// Find order by ID
func (api *OrderAPI) GetOrder(c *gin.Context) {
	id := c.Param("orderId")
	order, err := api.service.GetOrder(c.Request.Context(), id)
	if err != nil {
		respondOrderLookupError(c, id, err)
		return
	}
	c.JSON(http.StatusOK, orderhttpmapper.FromDomainOrder(order))
}

// Delete /api/orders/:orderId
// Deletes an order without running the saga
func (api *OrderAPI) DeleteOrder(c *gin.Context) {
	id := c.Param("orderId")
	if err := api.service.DeleteOrder(c.Request.Context(), id); err != nil {
		respondOrderLookupError(c, id, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Put /api/orders/:orderId/status
// Applies an explicit status transition
func (api *OrderAPI) UpdateOrderStatus(c *gin.Context) {
	var payload orderhttpmapper.UpdateStatusRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondBindingError(c, err)
		return
	}
	id := c.Param("orderId")
	order, err := api.service.UpdateStatus(c.Request.Context(), orderstypes.UpdateStatusInput{
		OrderID: id,
		Status:  payload.Status,
	})
	if err != nil {
		respondOrderLookupError(c, id, err)
		return
	}
	c.JSON(http.StatusOK, orderhttpmapper.FromDomainOrder(order))
}

// Get /api/orders/clients/:clientId/pending-amount
// Sums the client's orders still holding credit
func (api *OrderAPI) GetPendingAmount(c *gin.Context) {
	clientID, ok := parseIDParam(c, "clientId")
	if !ok {
		return
	}
	amount, err := api.service.PendingCommittedAmount(c.Request.Context(), clientID)
	if err != nil {
		respondOrderError(c, err)
		return
	}
	c.JSON(http.StatusOK, orderhttpmapper.FromPendingAmount(clientID, amount))
}

func parseIDParam(c *gin.Context, name string) (int64, bool) {
	value := c.Param(name)
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		orderResponder.BadRequest(c, fmt.Sprintf("%s must be an integer", name))
		return 0, false
	}
	return id, true
}
