package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tikitaka-go/internal/middleware"
	"tikitaka-go/internal/service"
)

// FeedbackHandler 负责用户反馈接口。
type FeedbackHandler struct {
	feedbackService service.FeedbackService
}

// NewFeedbackHandler 创建一个新的 FeedbackHandler 实例。
func NewFeedbackHandler(feedbackService service.FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{feedbackService: feedbackService}
}

// FeedbackRequest 是提交反馈的请求体。
type FeedbackRequest struct {
	PetID   string `json:"petId"`
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// Get 返回当前会话的反馈；没有反馈时 data 为 null。
func (h *FeedbackHandler) Get(c *gin.Context) {
	fb, err := h.feedbackService.Get(c.Request.Context(), middleware.SessionID(c))
	if err != nil {
		writeError(c, err, msgFeedbackFailed)
		return
	}
	success(c, fb)
}

// Prompt 返回离开聊天页面时是否需要弹出反馈表单。
func (h *FeedbackHandler) Prompt(c *gin.Context) {
	success(c, gin.H{"shouldPrompt": h.feedbackService.ShouldPrompt(c.Request.Context(), middleware.SessionID(c))})
}

// Submit 保存反馈，每个会话只能提交一次。
func (h *FeedbackHandler) Submit(c *gin.Context) {
	var req FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	fb, err := h.feedbackService.Submit(c.Request.Context(), middleware.SessionID(c), req.PetID, req.Rating, req.Comment)
	if err != nil {
		writeError(c, err, msgFeedbackFailed)
		return
	}
	success(c, fb)
}
