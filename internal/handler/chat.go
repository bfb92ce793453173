package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/solace-app/solace-gateway/internal/service"
)

type ChatHandler struct {
	chatService *service.ChatService
}

func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

type chatRequest struct {
	Message   string `json:"message" binding:"required,min=1,max=2048"`
	SessionID string `json:"session_id"`
}

// POST /api/chat
// Admission already happened in the quota middleware; this handler runs the
// generation and the service reports actual cost afterwards.
func (h *ChatHandler) Send(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	userID, ok := subjectID(c)
	if !ok {
		return
	}

	result, err := h.chatService.Send(c.Request.Context(), userID, req.SessionID, req.Message)
	if err != nil {
		if errors.Is(err, service.ErrInputTooLong) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":            "Input too long",
				"message":          "Message exceeds the input token limit. Please shorten your message.",
				"estimated_tokens": service.EstimateTokens(req.Message),
			})
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Chat service error",
			"message": "Failed to generate AI response. Please try again.",
		})
		return
	}

	c.Header("X-Quota-Remaining", strconv.FormatInt(result.QuotaRemaining, 10))
	c.JSON(http.StatusOK, result)
}

// GET /api/chat/history
func (h *ChatHandler) History(c *gin.Context) {
	userID, ok := subjectID(c)
	if !ok {
		return
	}

	limit := 20
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 {
		limit = l
	}

	result, err := h.chatService.History(c.Request.Context(), userID, c.Query("session_id"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to load chat history",
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

// subjectID pulls the authenticated subject out of the gin context.
func subjectID(c *gin.Context) (uuid.UUID, bool) {
	uid := c.GetString("uid")

	userID, err := uuid.Parse(uid)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "Unauthorized",
		})
		c.Abort()
		return uuid.Nil, false
	}

	return userID, true
}
