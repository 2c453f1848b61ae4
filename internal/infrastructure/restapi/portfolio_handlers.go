package restapi

import (
	"errors"
	"net/http"

	"portfolio_tracker/internal/app/port"
	"portfolio_tracker/internal/domain/entity"

	"github.com/gin-gonic/gin"
)

// APIError is the body of every non-2xx response.
type APIError struct {
	Error string `json:"error"`
}

// AddTokenRequest is the body of POST /tokens.
type AddTokenRequest struct {
	Address    string `json:"address" binding:"required"`
	EntryPrice string `json:"entryPrice" binding:"required"`
}

// EntryPriceRequest is the body of PUT /tokens/:address/entry.
type EntryPriceRequest struct {
	Price string `json:"price" binding:"required"`
}

// NoteRequest is the body of PUT /tokens/:address/note.
type NoteRequest struct {
	Note string `json:"note"`
}

// GroupRequest is the body of POST /groups and PATCH /groups/:id.
type GroupRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// GroupTokenRequest is the body of POST /groups/:id/tokens.
type GroupTokenRequest struct {
	Address string `json:"address" binding:"required"`
}

// PortfolioHandler обрабатывает HTTP запросы, связанные с портфелем.
type PortfolioHandler struct {
	portfolioService port.PortfolioService
}

// NewPortfolioHandler создает новый экземпляр PortfolioHandler.
func NewPortfolioHandler(ps port.PortfolioService) *PortfolioHandler {
	return &PortfolioHandler{portfolioService: ps}
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, entity.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, entity.ErrTokenNotFound),
		errors.Is(err, entity.ErrTokenNotTracked),
		errors.Is(err, entity.ErrGroupNotFound):
		return http.StatusNotFound
	case errors.Is(err, entity.ErrNoGroupsAvailable):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

func abortWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(statusFor(err), APIError{Error: err.Error()})
}

func badRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusBadRequest, APIError{Error: err.Error()})
}

// ListTokens handles GET /tokens.
func (h *PortfolioHandler) ListTokens(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tokens": h.portfolioService.ListTokens()})
}

// AddToken handles POST /tokens.
func (h *PortfolioHandler) AddToken(c *gin.Context) {
	var req AddTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	card, err := h.portfolioService.AddToken(c.Request.Context(), req.Address, req.EntryPrice)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, card)
}

// GetToken handles GET /tokens/:address.
func (h *PortfolioHandler) GetToken(c *gin.Context) {
	card, err := h.portfolioService.GetToken(c.Param("address"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, card)
}

// RemoveToken handles DELETE /tokens/:address.
func (h *PortfolioHandler) RemoveToken(c *gin.Context) {
	if err := h.portfolioService.RemoveToken(c.Param("address")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UpdateEntryPrice handles PUT /tokens/:address/entry.
func (h *PortfolioHandler) UpdateEntryPrice(c *gin.Context) {
	var req EntryPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	card, err := h.portfolioService.UpdateEntryPrice(c.Param("address"), req.Price)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, card)
}

// RefreshToken handles POST /tokens/:address/refresh.
func (h *PortfolioHandler) RefreshToken(c *gin.Context) {
	card, err := h.portfolioService.RefreshToken(c.Request.Context(), c.Param("address"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, card)
}

// SetNote handles PUT /tokens/:address/note.
func (h *PortfolioHandler) SetNote(c *gin.Context) {
	var req NoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.portfolioService.SetNote(c.Param("address"), req.Note); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RemoveNote handles DELETE /tokens/:address/note.
func (h *PortfolioHandler) RemoveNote(c *gin.Context) {
	if err := h.portfolioService.RemoveNote(c.Param("address")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListGroups handles GET /groups.
func (h *PortfolioHandler) ListGroups(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"groups": h.portfolioService.ListGroups()})
}

// CreateGroup handles POST /groups.
func (h *PortfolioHandler) CreateGroup(c *gin.Context) {
	var req GroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	var name, description string
	if req.Name != nil {
		name = *req.Name
	}
	if req.Description != nil {
		description = *req.Description
	}
	group, err := h.portfolioService.CreateGroup(name, description)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, group)
}

// GetGroup handles GET /groups/:id/tokens.
func (h *PortfolioHandler) GetGroup(c *gin.Context) {
	view, err := h.portfolioService.GetGroup(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// UpdateGroup handles PATCH /groups/:id.
func (h *PortfolioHandler) UpdateGroup(c *gin.Context) {
	var req GroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	group, err := h.portfolioService.UpdateGroup(c.Param("id"), req.Name, req.Description)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, group)
}

// RemoveGroup handles DELETE /groups/:id.
func (h *PortfolioHandler) RemoveGroup(c *gin.Context) {
	if err := h.portfolioService.RemoveGroup(c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AddTokenToGroup handles POST /groups/:id/tokens.
func (h *PortfolioHandler) AddTokenToGroup(c *gin.Context) {
	var req GroupTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.portfolioService.AddTokenToGroup(c.Param("id"), req.Address); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RemoveTokenFromGroup handles DELETE /groups/:id/tokens/:address.
func (h *PortfolioHandler) RemoveTokenFromGroup(c *gin.Context) {
	if err := h.portfolioService.RemoveTokenFromGroup(c.Param("id"), c.Param("address")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
