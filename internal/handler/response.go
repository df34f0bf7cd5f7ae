// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"tikitaka-go/internal/middleware"
	"tikitaka-go/internal/service"
	"tikitaka-go/pkg/log"
)

// 前端直接展示的提示文案。
const (
	msgSessionMissing  = "세션 ID가 없어요😭 다시 시도해주세요."
	msgSessionNotFound = "세션 정보를 찾을 수 없어요😭 다시 시도해주세요."
	msgPetNotFound     = "반려동물 정보를 찾을 수 없어요😭"
	msgPetSaveFailed   = "반려동물 정보 저장에 실패했어요😢 다시 시도해주세요."
	msgEmptyMessage    = "메시지를 입력해주세요."
	msgSendFailed      = "메시지 전송에 실패했어요😢 다시 시도해주세요."
	msgReplyFailed     = "메시지를 받아오는데 실패했어요😢 다시 시도해주세요."
	msgReadOnly        = "공유된 대화방은 메시지를 보낼 수 없어요"
	msgSendInFlight    = "답장을 기다리는 중이에요. 잠시만 기다려주세요."
	msgAdRequired      = "광고를 보면 대화를 이어갈 수 있어요!"
	msgAdGateDisabled  = "지금은 광고 보기를 사용할 수 없어요."
	msgRatingRequired  = "별점을 선택해주세요!"
	msgFeedbackExists  = "이미 피드백을 남겨주셨어요. 감사합니다!"
	msgFeedbackFailed  = "피드백 저장에 실패했어요."
	msgWizardNotStart  = "정보 입력을 처음부터 다시 시작해주세요."
	msgWizardStep      = "지금 단계에서는 할 수 없는 작업이에요."
	msgInvalidAnswer   = "입력한 내용을 다시 확인해줄래?"
	msgInvalidPhoto    = "이미지 파일만 업로드할 수 있어요."
	msgPhotoFailed     = "사진 업로드에 실패했어😞 다시 시도해줄래?"
	msgNoPhoto         = "저장된 사진이 없어. 사진을 올리거나 넘어가줘."
	msgShareInvalid    = "공유 링크가 만료되었거나 올바르지 않아요."
	msgSearchDisabled  = "대화 검색이 설정되지 않았습니다."
	msgInvalidRequest  = "잘못된 요청입니다."
)

// errorMapping 把业务错误映射为 HTTP 状态码与提示文案，按顺序匹配。
var errorMapping = []struct {
	err     error
	status  int
	message string
}{
	{service.ErrSessionRequired, http.StatusBadRequest, msgSessionMissing},
	{service.ErrSessionNotFound, http.StatusNotFound, msgSessionNotFound},
	{service.ErrPetNotFound, http.StatusNotFound, msgPetNotFound},
	{service.ErrEmptyMessage, http.StatusBadRequest, msgEmptyMessage},
	{service.ErrAdRequired, http.StatusForbidden, msgAdRequired},
	{service.ErrAdGateDisabled, http.StatusBadRequest, msgAdGateDisabled},
	{service.ErrReadOnlyChat, http.StatusForbidden, msgReadOnly},
	{service.ErrSendInFlight, http.StatusConflict, msgSendInFlight},
	{service.ErrCompletionFailed, http.StatusBadGateway, msgReplyFailed},
	{service.ErrEmptyCompletion, http.StatusBadGateway, msgReplyFailed},
	{service.ErrFeedbackExists, http.StatusConflict, msgFeedbackExists},
	{service.ErrInvalidRating, http.StatusBadRequest, msgRatingRequired},
	{service.ErrWizardNotStarted, http.StatusConflict, msgWizardNotStart},
	{service.ErrWizardStep, http.StatusConflict, msgWizardStep},
	{service.ErrInvalidAnswer, http.StatusBadRequest, msgInvalidAnswer},
	{service.ErrInvalidPhoto, http.StatusBadRequest, msgInvalidPhoto},
	{service.ErrPhotoUpload, http.StatusBadGateway, msgPhotoFailed},
	{service.ErrNoPhotoToKeep, http.StatusConflict, msgNoPhoto},
	{service.ErrInvalidShareToken, http.StatusNotFound, msgShareInvalid},
	{service.ErrSearchUnavailable, http.StatusServiceUnavailable, msgSearchDisabled},
}

func success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": data})
}

func abort(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, gin.H{"code": status, "message": message, "data": data})
}

// writeError 按 errorMapping 响应业务错误；未知错误记录日志并以 fallback 文案返回 500。
func writeError(c *gin.Context, err error, fallback string) {
	for _, m := range errorMapping {
		if errors.Is(err, m.err) {
			if m.status >= http.StatusInternalServerError {
				logFailure(c, err)
			}
			abort(c, m.status, m.message, nil)
			return
		}
	}
	logFailure(c, err)
	abort(c, http.StatusInternalServerError, fallback, nil)
}

func logFailure(c *gin.Context, err error) {
	log.Errorw("请求处理失败",
		"method", c.Request.Method,
		"path", c.FullPath(),
		"sessionId", middleware.SessionID(c),
		"error", err,
	)
}
