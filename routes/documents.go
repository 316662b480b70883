package routes

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/LLMontreal/llmontreal-backend/internal/documents"
	"github.com/LLMontreal/llmontreal-backend/utils"
)

func SetupDocumentRoutes(router *gin.Engine, svc *documents.Service) {
	docs := router.Group("/documents")

	// Upload a single document or a zip archive. Archives fan out into
	// one document per member and return 202 with the created ids;
	// single files block until the summary is ready.
	docs.POST("/upload", func(c *gin.Context) {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			utils.RespondWithBadRequest(c, "Missing file field", gin.H{"error": err.Error()})
			return
		}

		f, err := fileHeader.Open()
		if err != nil {
			utils.RespondWithBadRequest(c, "Unable to read uploaded file", gin.H{"error": err.Error()})
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			utils.RespondWithBadRequest(c, "Unable to read uploaded file", gin.H{"error": err.Error()})
			return
		}

		declaredType := fileHeader.Header.Get("Content-Type")

		if isArchiveType(declaredType, fileHeader.Filename) {
			result, err := svc.IngestArchive(c.Request.Context(), fileHeader.Filename, data)
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusAccepted, result)
			return
		}

		doc, err := svc.Upload(c.Request.Context(), fileHeader.Filename, declaredType, data)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, doc)
	})

	docs.GET("", func(c *gin.Context) {
		page, _ := strconv.ParseInt(c.DefaultQuery("page", "1"), 10, 64)
		size, _ := strconv.ParseInt(c.DefaultQuery("size", "20"), 10, 64)
		if page < 1 {
			page = 1
		}
		if size < 1 || size > 100 {
			size = 20
		}

		items, total, err := svc.List(c.Request.Context(), c.Query("status"), page, size)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"documents": items,
			"total":     total,
			"page":      page,
			"size":      size,
		})
	})

	docs.GET("/:id", func(c *gin.Context) {
		doc, err := svc.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, doc)
	})

	docs.GET("/:id/text", func(c *gin.Context) {
		text, err := svc.GetExtractedText(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"document_id": c.Param("id"), "extracted_text": text})
	})

	docs.GET("/:id/summary", func(c *gin.Context) {
		summary, err := svc.GetSummary(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"document_id": c.Param("id"), "summary": summary})
	})

	// Re-run summarization. Blocks like upload does; concurrent calls
	// for the same document are serialized by the version guard.
	docs.POST("/:id/summary/regenerate", func(c *gin.Context) {
		doc, err := svc.RegenerateSummary(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, doc)
	})
}

func isArchiveType(declaredType, fileName string) bool {
	mediaType := strings.ToLower(declaredType)
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = mediaType[:i]
	}
	mediaType = strings.TrimSpace(mediaType)
	if mediaType == "application/zip" || mediaType == "application/x-zip-compressed" {
		return true
	}
	return strings.HasSuffix(strings.ToLower(fileName), ".zip")
}
