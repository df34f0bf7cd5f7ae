package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"tikitaka-go/pkg/storage"
)

// PhotoHandler 在未配置 MinIO 的开发环境中提供进程内照片的读取。
type PhotoHandler struct {
	store *storage.MemoryPhotoStore
}

// NewPhotoHandler 创建一个新的 PhotoHandler 实例。
func NewPhotoHandler(store *storage.MemoryPhotoStore) *PhotoHandler {
	return &PhotoHandler{store: store}
}

// Serve 返回路径 /memory/*object 对应的照片。
func (h *PhotoHandler) Serve(c *gin.Context) {
	data, contentType, ok := h.store.Object(strings.TrimPrefix(c.Param("object"), "/"))
	if !ok {
		c.Status(http.StatusNotFound)
		return
	}
	c.Data(http.StatusOK, contentType, data)
}
