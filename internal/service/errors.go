// Package service 包含了应用的业务逻辑层。
package service

import "errors"

// 业务错误。handler 通过 errors.Is 把它们映射为 HTTP 状态码与提示文案。
var (
	ErrSessionRequired   = errors.New("session id is required")
	ErrSessionNotFound   = errors.New("session not found")
	ErrPetNotFound       = errors.New("pet profile not found")
	ErrEmptyMessage      = errors.New("message is empty")
	ErrMessageLimit      = errors.New("message limit reached")
	ErrAdRequired        = errors.New("an ad view is required to continue")
	ErrAdGateDisabled    = errors.New("ad gate is disabled")
	ErrReadOnlyChat      = errors.New("shared chat is read-only")
	ErrSendInFlight      = errors.New("another message is being sent")
	ErrCompletionFailed  = errors.New("completion request failed")
	ErrEmptyCompletion   = errors.New("completion returned no content")
	ErrFeedbackExists    = errors.New("feedback already submitted")
	ErrInvalidRating     = errors.New("rating must be between 1 and 5")
	ErrWizardNotStarted  = errors.New("onboarding has not been started")
	ErrWizardStep        = errors.New("operation is not allowed at the current step")
	ErrInvalidAnswer     = errors.New("invalid answer")
	ErrPhotoTooLarge     = errors.New("photo exceeds the size limit")
	ErrInvalidPhoto      = errors.New("file is not an image")
	ErrPhotoUpload       = errors.New("photo upload failed")
	ErrNoPhotoToKeep     = errors.New("draft has no photo to keep")
	ErrInvalidShareToken = errors.New("share token is invalid or expired")
	ErrSearchUnavailable = errors.New("transcript search is not configured")
)
