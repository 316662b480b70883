package routes

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/LLMontreal/llmontreal-backend/internal/ai"
	"github.com/LLMontreal/llmontreal-backend/internal/broker"
	"github.com/LLMontreal/llmontreal-backend/internal/chat"
	"github.com/LLMontreal/llmontreal-backend/internal/correlation"
	"github.com/LLMontreal/llmontreal-backend/internal/dispatch"
	"github.com/LLMontreal/llmontreal-backend/internal/documents"
	"github.com/LLMontreal/llmontreal-backend/internal/extraction"
	"github.com/LLMontreal/llmontreal-backend/internal/store"
	"github.com/LLMontreal/llmontreal-backend/utils"
)

// respondError maps domain errors onto HTTP responses. Anything not
// recognized is a 500 with a generic message so internals never leak.
func respondError(c *gin.Context, err error) {
	var remote *broker.RemoteError

	switch {
	case errors.Is(err, store.ErrNotFound):
		utils.RespondWithNotFound(c, err.Error())
	case errors.Is(err, documents.ErrFileTooLarge):
		utils.RespondWithError(c, http.StatusRequestEntityTooLarge, "file_too_large", err.Error(), nil)
	case errors.Is(err, documents.ErrUnsupportedFileType):
		utils.RespondWithError(c, http.StatusUnsupportedMediaType, "unsupported_file_type", err.Error(), nil)
	case errors.Is(err, documents.ErrEmptyArchive):
		utils.RespondWithBadRequest(c, err.Error(), nil)
	case errors.Is(err, documents.ErrInvalidStateTransition),
		errors.Is(err, documents.ErrSummaryUnavailable),
		errors.Is(err, chat.ErrDocumentNotReady),
		errors.Is(err, store.ErrVersionConflict):
		utils.RespondWithError(c, http.StatusConflict, "conflict", err.Error(), nil)
	case errors.Is(err, correlation.ErrTimeout):
		utils.RespondWithError(c, http.StatusGatewayTimeout, "timeout", "the job did not complete in time", nil)
	case errors.As(err, &remote), errors.Is(err, dispatch.ErrDispatchFailed):
		utils.RespondWithError(c, http.StatusBadGateway, "upstream_error", err.Error(), nil)
	case errors.Is(err, ai.ErrModelUnavailable), errors.Is(err, extraction.ErrQueueFull):
		utils.RespondWithError(c, http.StatusServiceUnavailable, "service_unavailable", err.Error(), nil)
	default:
		utils.RespondWithInternalError(c, "Internal server error", nil)
	}
}
