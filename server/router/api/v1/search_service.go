// Package v1 exposes the HTTP query surface.
package v1

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/openjuris/lexvec/internal/apperrors"
	"github.com/openjuris/lexvec/internal/profile"
	"github.com/openjuris/lexvec/server/retrieval"
	"github.com/openjuris/lexvec/store"
)

// APIV1Service wires the retrieval service into echo routes.
type APIV1Service struct {
	Profile   *profile.Profile
	Store     *store.Store
	Retrieval *retrieval.Service
}

// NewAPIV1Service creates the v1 API service.
func NewAPIV1Service(profile *profile.Profile, store *store.Store, retrievalService *retrieval.Service) *APIV1Service {
	return &APIV1Service{
		Profile:   profile,
		Store:     store,
		Retrieval: retrievalService,
	}
}

// Register attaches the v1 routes to the echo instance.
func (s *APIV1Service) Register(e *echo.Echo) {
	e.GET("/healthz", s.health)
	e.POST("/api/v1/search", s.search)
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type searchResponse struct {
	Matches []*retrieval.Match `json:"matches"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *APIV1Service) search(c echo.Context) error {
	var req searchRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{
			Code:    string(apperrors.ErrCodeMalformedInput),
			Message: "request body must be JSON with a query field",
		})
	}

	limit := req.Limit
	if limit == 0 {
		limit = s.Profile.TopK
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), s.Profile.QueryTimeout)
	defer cancel()

	matches, err := s.Retrieval.Search(ctx, req.Query, limit)
	if err != nil {
		return c.JSON(statusForError(err), errorResponse{
			Code:    codeForError(err),
			Message: err.Error(),
		})
	}
	return c.JSON(http.StatusOK, searchResponse{Matches: matches})
}

func (s *APIV1Service) health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), s.Profile.QueryTimeout)
	defer cancel()

	if err := s.Store.Ping(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, errorResponse{
			Code:    string(apperrors.ErrCodeServiceUnavailable),
			Message: "database unreachable",
		})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func codeForError(err error) string {
	if code := apperrors.CodeOf(err); code != "" {
		return string(code)
	}
	return "INTERNAL"
}

func statusForError(err error) int {
	switch apperrors.CodeOf(err) {
	case apperrors.ErrCodeInvalidArgument, apperrors.ErrCodeMalformedInput:
		return http.StatusBadRequest
	case apperrors.ErrCodeEmbeddingFailed:
		return http.StatusBadGateway
	case apperrors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case apperrors.ErrCodeServiceUnavailable, apperrors.ErrCodePersistenceFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
