package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tikitaka-go/internal/middleware"
	"tikitaka-go/internal/service"
	"tikitaka-go/pkg/log"
)

// NonceHeader 携带客户端为一次会话创建生成的随机数，用于合并并发请求。
const NonceHeader = "X-Client-Nonce"

// SessionHandler 负责发放匿名会话。
type SessionHandler struct {
	sessionService service.SessionService
}

// NewSessionHandler 创建一个新的 SessionHandler 实例。
func NewSessionHandler(sessionService service.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

// Create 返回请求头中已有的会话，或创建一个新会话。
func (h *SessionHandler) Create(c *gin.Context) {
	sess, created, err := h.sessionService.Ensure(c.Request.Context(), middleware.SessionID(c), c.GetHeader(NonceHeader))
	if err != nil {
		log.Errorf("[SessionHandler] 创建会话失败: %v", err)
		abort(c, http.StatusInternalServerError, msgSessionMissing, gin.H{"redirect": "/"})
		return
	}
	success(c, gin.H{"sessionId": sess.ID, "created": created})
}
