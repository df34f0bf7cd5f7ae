package handler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"tikitaka-go/internal/config"
	"tikitaka-go/internal/middleware"
	"tikitaka-go/internal/service"
	"tikitaka-go/internal/wizard"
	"tikitaka-go/pkg/log"
)

// multipart 头部与其他表单字段预留的空间。
const multipartOverhead = 1 << 20

// OnboardingHandler 负责宠物档案引导问答的接口。
type OnboardingHandler struct {
	onboardingService service.OnboardingService
	maxPhotoBytes     int64
}

// NewOnboardingHandler 创建一个新的 OnboardingHandler 实例。
func NewOnboardingHandler(onboardingService service.OnboardingService, uploadCfg config.UploadConfig) *OnboardingHandler {
	return &OnboardingHandler{onboardingService: onboardingService, maxPhotoBytes: uploadCfg.MaxPhotoBytes}
}

// StartRequest 是开始问答的请求体。
type StartRequest struct {
	OwnerName string `json:"ownerName"`
}

// AnswerRequest 是回答当前步骤的请求体，文本与选项二选一。
type AnswerRequest struct {
	Text    string   `json:"text"`
	Choices []string `json:"choices"`
}

// Start 开始一次新的问答。
func (h *OnboardingHandler) Start(c *gin.Context) {
	var req StartRequest
	// 请求体可以为空
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			abort(c, http.StatusBadRequest, msgInvalidRequest, nil)
			return
		}
	}
	st, err := h.onboardingService.Start(c.Request.Context(), middleware.SessionID(c), req.OwnerName)
	if err != nil {
		writeError(c, err, msgPetSaveFailed)
		return
	}
	success(c, st)
}

// Get 返回当前问答状态。
func (h *OnboardingHandler) Get(c *gin.Context) {
	st, err := h.onboardingService.Get(c.Request.Context(), middleware.SessionID(c))
	if err != nil {
		writeError(c, err, msgPetSaveFailed)
		return
	}
	success(c, st)
}

// Answer 提交当前步骤的回答。
func (h *OnboardingHandler) Answer(c *gin.Context) {
	var req AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	st, err := h.onboardingService.Answer(c.Request.Context(), middleware.SessionID(c), wizard.Answer{Text: req.Text, Choices: req.Choices})
	if err != nil {
		writeError(c, err, msgPetSaveFailed)
		return
	}
	success(c, st)
}

// UploadPhoto 接收 multipart 字段 file 中的宠物照片。
func (h *OnboardingHandler) UploadPhoto(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxPhotoBytes+multipartOverhead)
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			abort(c, http.StatusRequestEntityTooLarge, h.tooLargeMessage(), nil)
			return
		}
		log.Warnf("[OnboardingHandler] 读取上传文件失败: %v", err)
		abort(c, http.StatusBadRequest, msgPhotoFailed, nil)
		return
	}
	if header.Size > h.maxPhotoBytes {
		abort(c, http.StatusRequestEntityTooLarge, h.tooLargeMessage(), nil)
		return
	}

	file, err := header.Open()
	if err != nil {
		log.Errorf("[OnboardingHandler] 打开上传文件失败: %v", err)
		abort(c, http.StatusBadRequest, msgPhotoFailed, nil)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	var body io.Reader = file
	if contentType == "" || contentType == "application/octet-stream" {
		// 浏览器未给出类型时按内容嗅探
		head := make([]byte, 512)
		n, _ := io.ReadFull(file, head)
		contentType = http.DetectContentType(head[:n])
		body = io.MultiReader(bytes.NewReader(head[:n]), file)
	}

	st, err := h.onboardingService.UploadPhoto(c.Request.Context(), middleware.SessionID(c), service.PhotoUpload{
		Filename:    header.Filename,
		Size:        header.Size,
		ContentType: contentType,
		Body:        body,
	})
	if err != nil {
		if errors.Is(err, service.ErrPhotoTooLarge) {
			abort(c, http.StatusRequestEntityTooLarge, h.tooLargeMessage(), nil)
			return
		}
		writeError(c, err, msgPhotoFailed)
		return
	}
	success(c, st)
}

// SkipPhoto 跳过照片步骤。
func (h *OnboardingHandler) SkipPhoto(c *gin.Context) {
	st, err := h.onboardingService.SkipPhoto(c.Request.Context(), middleware.SessionID(c))
	if err != nil {
		writeError(c, err, msgPetSaveFailed)
		return
	}
	success(c, st)
}

// KeepPhoto 保留草稿中已有的照片，对应"저장하기"。
func (h *OnboardingHandler) KeepPhoto(c *gin.Context) {
	st, err := h.onboardingService.KeepPhoto(c.Request.Context(), middleware.SessionID(c))
	if err != nil {
		writeError(c, err, msgPetSaveFailed)
		return
	}
	success(c, st)
}

// Edit 在确认步骤选择"수정하기"。
func (h *OnboardingHandler) Edit(c *gin.Context) {
	st, err := h.onboardingService.Edit(c.Request.Context(), middleware.SessionID(c))
	if err != nil {
		writeError(c, err, msgPetSaveFailed)
		return
	}
	success(c, st)
}

// Complete 在确认步骤选择"확인"，保存档案。
func (h *OnboardingHandler) Complete(c *gin.Context) {
	st, err := h.onboardingService.Complete(c.Request.Context(), middleware.SessionID(c))
	if err != nil {
		writeError(c, err, msgPetSaveFailed)
		return
	}
	success(c, st)
}

func (h *OnboardingHandler) tooLargeMessage() string {
	if h.maxPhotoBytes < 1<<20 {
		return fmt.Sprintf("파일 크기는 %dKB 이하여야 합니다.", h.maxPhotoBytes>>10)
	}
	return fmt.Sprintf("파일 크기는 %dMB 이하여야 합니다.", h.maxPhotoBytes>>20)
}
