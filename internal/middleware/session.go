package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// SessionHeader 携带浏览器保存的会话 ID。
	SessionHeader = "X-Session-ID"
	// SessionQuery 供无法设置请求头的 WebSocket 连接使用。
	SessionQuery = "viewerSessionId"

	sessionKey = "sessionId"
)

// Session 从请求头（或 WebSocket 的查询参数）中读取会话 ID 并存入 Gin 上下文。
// 缺少会话 ID 时不中止请求，由处理函数决定如何响应。
func Session() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(SessionHeader))
		if id == "" {
			id = strings.TrimSpace(c.Query(SessionQuery))
		}
		c.Set(sessionKey, id)
		c.Next()
	}
}

// SessionID 返回 Session 中间件存入的会话 ID。
func SessionID(c *gin.Context) string {
	return c.GetString(sessionKey)
}
