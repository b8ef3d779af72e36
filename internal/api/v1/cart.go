package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/renewly/renewly/internal/api/dto"
	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/renewly/renewly/internal/logger"
	"github.com/renewly/renewly/internal/service"
)

type CartHandler struct {
	checkoutService service.CheckoutService
	logger          *logger.Logger
}

func NewCartHandler(checkoutService service.CheckoutService, logger *logger.Logger) *CartHandler {
	return &CartHandler{
		checkoutService: checkoutService,
		logger:          logger,
	}
}

// @Summary Get a customer's cart
// @Description Retrieves the customer's open cart with totals
// @Tags Carts
// @Produce json
// @Param customer_id path string true "Customer ID"
// @Success 200 {object} dto.CartResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /carts/{customer_id} [get]
func (h *CartHandler) GetCart(c *gin.Context) {
	response, err := h.checkoutService.GetCart(c.Request.Context(), c.Param("customer_id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// @Summary Add an item to the cart
// @Description Stages a product in the customer's cart, creating the cart if needed
// @Tags Carts
// @Accept json
// @Produce json
// @Param item body dto.AddCartItemRequest true "Item request"
// @Success 200 {object} dto.CartResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /carts/items [post]
func (h *CartHandler) AddItem(c *gin.Context) {
	var req dto.AddCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	response, err := h.checkoutService.AddItem(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// @Summary Update a cart item
// @Description Changes a staged item's quantity
// @Tags Carts
// @Accept json
// @Produce json
// @Param customer_id path string true "Customer ID"
// @Param item_id path string true "Item ID"
// @Param item body dto.UpdateCartItemRequest true "Item update"
// @Success 200 {object} dto.CartResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /carts/{customer_id}/items/{item_id} [put]
func (h *CartHandler) UpdateItem(c *gin.Context) {
	var req dto.UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	response, err := h.checkoutService.UpdateItem(c.Request.Context(), c.Param("customer_id"), c.Param("item_id"), &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// @Summary Remove a cart item
// @Description Removes a staged item from the cart
// @Tags Carts
// @Produce json
// @Param customer_id path string true "Customer ID"
// @Param item_id path string true "Item ID"
// @Success 200 {object} dto.CartResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /carts/{customer_id}/items/{item_id} [delete]
func (h *CartHandler) RemoveItem(c *gin.Context) {
	response, err := h.checkoutService.RemoveItem(c.Request.Context(), c.Param("customer_id"), c.Param("item_id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// @Summary Check out a cart
// @Description Converts the customer's cart into an active subscription with its first invoice
// @Tags Carts
// @Accept json
// @Produce json
// @Param checkout body dto.CheckoutRequest true "Checkout request"
// @Success 201 {object} dto.CheckoutResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Failure 422 {object} ierr.ErrorResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /checkout [post]
func (h *CartHandler) Checkout(c *gin.Context) {
	var req dto.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	response, err := h.checkoutService.Checkout(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, response)
}
