package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"tikitaka-go/internal/middleware"
	"tikitaka-go/internal/service"
	"tikitaka-go/pkg/es"
	"tikitaka-go/pkg/log"
)

// OpsHandler 提供运维使用的对话检索与反馈列表。
type OpsHandler struct {
	searchService   service.SearchService
	feedbackService service.FeedbackService
}

// NewOpsHandler 创建一个新的 OpsHandler 实例。
func NewOpsHandler(searchService service.SearchService, feedbackService service.FeedbackService) *OpsHandler {
	return &OpsHandler{searchService: searchService, feedbackService: feedbackService}
}

// SearchTranscripts 按内容检索对话，可按 sessionId、petId 过滤。
func (h *OpsHandler) SearchTranscripts(c *gin.Context) {
	q := es.SearchQuery{
		Text:      strings.TrimSpace(c.Query("q")),
		SessionID: c.Query("sessionId"),
		PetID:     c.Query("petId"),
	}
	if size, err := strconv.Atoi(c.DefaultQuery("size", "20")); err == nil && size > 0 && size <= 100 {
		q.Size = size
	}
	log.Infof("[OpsHandler] %s 检索对话, q=%q, session=%s, pet=%s", middleware.OpsOperator(c), q.Text, q.SessionID, q.PetID)

	hits, err := h.searchService.SearchTranscripts(c.Request.Context(), q)
	if err != nil {
		writeError(c, err, "검색에 실패했습니다.")
		return
	}
	success(c, hits)
}

// ListFeedback 分页返回所有反馈。
func (h *OpsHandler) ListFeedback(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		abort(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	size, err := strconv.Atoi(c.DefaultQuery("size", "20"))
	if err != nil {
		abort(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	list, total, err := h.feedbackService.List(c.Request.Context(), page, size)
	if err != nil {
		writeError(c, err, msgFeedbackFailed)
		return
	}
	success(c, gin.H{"content": list, "totalElements": total, "number": page, "size": size})
}
