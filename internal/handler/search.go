package handler

import (
	"log/slog"
	"net/http"

	"kbase/internal/domain/models/docsystem"
	docsysSvc "kbase/internal/domain/services/docsystem"
	"kbase/internal/httputil"
)

// SearchHandler handles search requests
type SearchHandler struct {
	searchService docsysSvc.SearchService
	logger        *slog.Logger
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(searchService docsysSvc.SearchService, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{
		searchService: searchService,
		logger:        logger,
	}
}

// Search runs a document search
// GET /api/search?query=&limit=&offset=
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	limit, err := httputil.QueryInt(r, "limit", docsystem.DefaultSearchLimit)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := httputil.QueryInt(r, "offset", 0)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	results, err := h.searchService.Search(r.Context(), &docsysSvc.SearchRequest{
		Query:  r.URL.Query().Get("query"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, results)
}
