package routes

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/LLMontreal/llmontreal-backend/internal/chat"
	"github.com/LLMontreal/llmontreal-backend/utils"
)

type sendMessageRequest struct {
	Message string `json:"message" binding:"required"`
}

func SetupChatRoutes(router *gin.Engine, svc *chat.Service) {
	group := router.Group("/documents/:id/chat")

	// Ask a question about the document. Blocks until the model answers
	// or the wait ceiling passes.
	group.POST("", func(c *gin.Context) {
		var req sendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			utils.RespondWithBadRequest(c, "Message must not be empty", nil)
			return
		}

		reply, err := svc.Send(c.Request.Context(), c.Param("id"), req.Message)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, reply)
	})

	group.GET("", func(c *gin.Context) {
		session, err := svc.History(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, session)
	})
}
