package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/ragserve/internal/search"
)

const (
	defaultTopK = 10
	maxTopK     = 200
)

// SearchHandler exposes the search gateway.
type SearchHandler struct {
	Gateway *search.Gateway
}

func (h *SearchHandler) Register(g *echo.Group) {
	g.POST("/bm25", h.bm25)
	g.GET("/stats", h.stats)
	g.POST("/reindex", h.reindex)
}

// BM25 search
//
//	@Summary	Keyword search over indexed chunks
//	@Tags		search
//	@Accept		json
//	@Produce	json
//	@Param		payload	body		BM25Request	true	"Query"
//	@Success	200		{object}	BM25Response
//	@Failure	400		{object}	HTTPError
//	@Failure	503		{object}	HTTPError
//	@Router		/search/bm25 [post]
func (h *SearchHandler) bm25(c echo.Context) error {
	var req BM25Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}
	if req.TopK <= 0 {
		req.TopK = defaultTopK
	}
	if req.TopK > maxTopK {
		req.TopK = maxTopK
	}
	hits, err := h.Gateway.Search(c.Request().Context(), req.Query, req.TopK, req.Fields...)
	if err != nil {
		return searchError(err)
	}
	if hits == nil {
		hits = []search.Hit{}
	}
	return c.JSON(http.StatusOK, BM25Response{Query: req.Query, Hits: hits})
}

// Index stats
//
//	@Summary	Document count of the chunk index
//	@Tags		search
//	@Produce	json
//	@Success	200	{object}	StatsResponse
//	@Router		/search/stats [get]
func (h *SearchHandler) stats(c echo.Context) error {
	st, err := h.Gateway.Stats(c.Request().Context())
	if err != nil {
		return searchError(err)
	}
	return c.JSON(http.StatusOK, StatsResponse{Index: h.Gateway.Index, Count: st.Count})
}

// Reindex
//
//	@Summary	Ensure the index and bulk load the chunk snapshot
//	@Tags		search
//	@Produce	json
//	@Success	200	{object}	ReindexResponse
//	@Router		/search/reindex [post]
func (h *SearchHandler) reindex(c echo.Context) error {
	n, err := h.Gateway.Reindex(c.Request().Context())
	if err != nil {
		return searchError(err)
	}
	return c.JSON(http.StatusOK, ReindexResponse{Index: h.Gateway.Index, Indexed: n})
}

func searchError(err error) error {
	var engErr *search.EngineError
	switch {
	case errors.Is(err, search.ErrNotConfigured):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, search.ErrIndexNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.As(err, &engErr):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
