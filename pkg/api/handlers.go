package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/edgeflare/ragapi/pkg/httputil"
	mw "github.com/edgeflare/ragapi/pkg/httputil/middleware"
	"github.com/edgeflare/ragapi/pkg/rag"
	"go.uber.org/zap"
)

const (
	maxBodyBytes    = 64 << 10
	internalErrText = "An internal error occurred. Please try again later."
)

type SubmitQueryRequest struct {
	QueryText string `json:"query_text"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service,omitempty"`
	Chunks  *int   `json:"chunks,omitempty"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, http.StatusOK, HealthResponse{Status: "healthy", Service: "rag-api"})
}

// handleHealthz reports ready once the vector store answers.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	n, err := s.store.Count(r.Context())
	if err != nil {
		mw.Logger(r.Context()).Warn("store not ready", zap.Error(err))
		httputil.Error(w, http.StatusServiceUnavailable, "vector store unavailable")
		return
	}
	httputil.JSON(w, http.StatusOK, HealthResponse{Status: "ready", Chunks: &n})
}

func (s *Server) handleSubmitQuery(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req SubmitQueryRequest
	if err := httputil.BindOrError(r, w, &req); err != nil {
		return
	}

	req.QueryText = strings.TrimSpace(req.QueryText)
	if n := utf8.RuneCountInString(req.QueryText); n < 1 || n > s.opts.MaxQueryLength {
		httputil.Error(w, http.StatusUnprocessableEntity,
			fmt.Sprintf("query_text must be between 1 and %d characters", s.opts.MaxQueryLength))
		return
	}

	resp, err := s.querier.Query(r.Context(), req.QueryText)
	if err != nil {
		if errors.Is(err, rag.ErrEmptyQuery) {
			httputil.Error(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		mw.Logger(r.Context()).Error("error processing query", zap.Error(err))
		httputil.Error(w, http.StatusInternalServerError, internalErrText)
		return
	}

	httputil.JSON(w, http.StatusOK, resp)
}
