package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/renewly/renewly/internal/api/dto"
	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/renewly/renewly/internal/logger"
	"github.com/renewly/renewly/internal/service"
	"github.com/renewly/renewly/internal/types"
)

type DiscountHandler struct {
	discountService service.DiscountService
	logger          *logger.Logger
}

func NewDiscountHandler(discountService service.DiscountService, logger *logger.Logger) *DiscountHandler {
	return &DiscountHandler{
		discountService: discountService,
		logger:          logger,
	}
}

// @Summary Create a new discount
// @Description Creates a redeemable discount code
// @Tags Discounts
// @Accept json
// @Produce json
// @Param discount body dto.CreateDiscountRequest true "Discount request"
// @Success 201 {object} dto.DiscountResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 409 {object} ierr.ErrorResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /discounts [post]
func (h *DiscountHandler) CreateDiscount(c *gin.Context) {
	var req dto.CreateDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	response, err := h.discountService.CreateDiscount(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, response)
}

// @Summary Get a discount by ID
// @Description Retrieves a discount
// @Tags Discounts
// @Produce json
// @Param id path string true "Discount ID"
// @Success 200 {object} dto.DiscountResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /discounts/{id} [get]
func (h *DiscountHandler) GetDiscount(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("discount ID is required").
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	response, err := h.discountService.GetDiscount(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// @Summary List discounts
// @Description Lists discounts matching the filter
// @Tags Discounts
// @Produce json
// @Param filter query types.DiscountFilter false "Filter"
// @Success 200 {object} dto.ListDiscountsResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /discounts [get]
func (h *DiscountHandler) ListDiscounts(c *gin.Context) {
	var filter types.DiscountFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid filter parameters").
			Mark(ierr.ErrValidation))
		return
	}

	response, err := h.discountService.ListDiscounts(c.Request.Context(), &filter)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// @Summary Update a discount
// @Description Updates a discount definition
// @Tags Discounts
// @Accept json
// @Produce json
// @Param id path string true "Discount ID"
// @Param discount body dto.UpdateDiscountRequest true "Update request"
// @Success 200 {object} dto.DiscountResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /discounts/{id} [put]
func (h *DiscountHandler) UpdateDiscount(c *gin.Context) {
	var req dto.UpdateDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	response, err := h.discountService.UpdateDiscount(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// @Summary Delete a discount
// @Description Deletes a discount code
// @Tags Discounts
// @Produce json
// @Param id path string true "Discount ID"
// @Success 204
// @Failure 404 {object} ierr.ErrorResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /discounts/{id} [delete]
func (h *DiscountHandler) DeleteDiscount(c *gin.Context) {
	if err := h.discountService.DeleteDiscount(c.Request.Context(), c.Param("id")); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary Validate a discount code
// @Description Checks a code against a prospective purchase
// @Tags Discounts
// @Accept json
// @Produce json
// @Param validation body dto.ValidateDiscountRequest true "Validation request"
// @Success 200 {object} dto.ValidateDiscountResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /discounts/validate [post]
func (h *DiscountHandler) ValidateDiscount(c *gin.Context) {
	var req dto.ValidateDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	response, err := h.discountService.ValidateDiscount(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, response)
}
