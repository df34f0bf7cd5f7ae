package handler

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"tikitaka-go/internal/middleware"
	"tikitaka-go/internal/service"
)

// ShareHandler 负责分享链接、只读分享页面与对话导出。
type ShareHandler struct {
	shareService service.ShareService
}

// NewShareHandler 创建一个新的 ShareHandler 实例。
func NewShareHandler(shareService service.ShareService) *ShareHandler {
	return &ShareHandler{shareService: shareService}
}

// Share 返回当前会话对话的分享链接。
func (h *ShareHandler) Share(c *gin.Context) {
	links, err := h.shareService.Share(c.Request.Context(), middleware.SessionID(c), c.Query("petId"))
	if err != nil {
		writeError(c, err, msgReplyFailed)
		return
	}
	success(c, links)
}

// Shared 按分享令牌返回只读的档案与对话。
func (h *ShareHandler) Shared(c *gin.Context) {
	conv, err := h.shareService.Shared(c.Request.Context(), c.Param("token"))
	if err != nil {
		writeError(c, err, msgReplyFailed)
		return
	}
	success(c, conv)
}

// Export 以纯文本附件下载对话记录。
func (h *ShareHandler) Export(c *gin.Context) {
	exp, err := h.shareService.Export(c.Request.Context(), middleware.SessionID(c), c.Query("sessionId"), c.Query("petId"))
	if err != nil {
		writeError(c, err, msgReplyFailed)
		return
	}
	c.Header("Content-Disposition", contentDisposition(exp.Filename))
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(exp.Content))
}

// Contact 返回联系邮件链接。
func (h *ShareHandler) Contact(c *gin.Context) {
	success(c, gin.H{"mailto": h.shareService.ContactMailto()})
}

// contentDisposition 同时给出 ASCII 文件名与 RFC 5987 编码的 UTF-8 文件名。
func contentDisposition(filename string) string {
	ascii := strings.Map(func(r rune) rune {
		if r < 0x20 || r > 0x7e || r == '"' || r == '\\' {
			return '_'
		}
		return r
	}, filename)
	return fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`, ascii, url.PathEscape(filename))
}
