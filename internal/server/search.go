package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/gemsearch/internal/search"
	"github.com/mohammad-safakhou/gemsearch/models"
)

const followUpPath = "/api/follow-up"

// SearchHandler exposes the search service over JSON.
type SearchHandler struct {
	Service *search.Service
}

// FollowUpRequest is the body of POST /api/follow-up.
type FollowUpRequest struct {
	SessionID string `json:"sessionId"`
	Query     string `json:"query"`
}

func (h *SearchHandler) Register(g *echo.Group) {
	g.GET("/search", h.search)
	g.POST("/follow-up", h.followUp)
}

// search starts a new grounded conversation.
//
//	@Summary  Grounded web search
//	@Tags     search
//	@Produce  json
//	@Param    q query string true "search query"
//	@Success  200 {object} models.SearchResult
//	@Failure  400 {object} ErrorResponse
//	@Failure  500 {object} ErrorResponse
//	@Router   /api/search [get]
func (h *SearchHandler) search(c echo.Context) error {
	q := c.QueryParam("q")
	if strings.TrimSpace(q) == "" {
		return &models.ValidationError{Message: "Query parameter 'q' is required"}
	}
	res, err := h.Service.StartSearch(c.Request().Context(), q)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// followUp continues an existing conversation.
//
//	@Summary  Follow-up question
//	@Tags     search
//	@Accept   json
//	@Produce  json
//	@Param    body body FollowUpRequest true "session and question"
//	@Success  200 {object} models.FollowUpResult
//	@Failure  400 {object} ErrorResponse
//	@Failure  404 {object} ErrorResponse
//	@Failure  500 {object} ErrorResponse
//	@Router   /api/follow-up [post]
func (h *SearchHandler) followUp(c echo.Context) error {
	var req FollowUpRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	res, err := h.Service.FollowUp(c.Request().Context(), req.SessionID, req.Query)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}
