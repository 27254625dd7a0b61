package httpadapter

import (
	"net/http"

	"github.com/pmwiki/backend/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrSectionNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrEmbeddingUnavailable),
		domain.IsKind(err, domain.ErrIndexUnavailable),
		domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrGenerationFailed):
		if kind, ok := domain.GenerationKindOf(err); ok && kind == domain.GenerationKindRateLimited {
			return http.StatusTooManyRequests
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
