package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"tikitaka-go/internal/config"
	"tikitaka-go/internal/model"
	"tikitaka-go/internal/repository"
	"tikitaka-go/internal/wizard"
	"tikitaka-go/pkg/log"
	"tikitaka-go/pkg/storage"
)

// 用户在确认步骤上的操作回显。
const (
	editEcho    = "수정하기"
	confirmEcho = "확인"
)

// WizardState 是引导问答当前的完整状态，前端据此渲染对话与输入框。
type WizardState struct {
	Step        wizard.Step        `json:"step"`
	Prompt      string             `json:"prompt"`
	Placeholder string             `json:"placeholder"`
	Input       wizard.InputKind   `json:"input"`
	Options     []string           `json:"options,omitempty"`
	Transcript  []model.WizardTurn `json:"transcript"`
	Draft       model.Pet          `json:"draft"`
	Summary     string             `json:"summary,omitempty"`
	Completed   bool               `json:"completed"`
	Pet         *model.Pet         `json:"pet,omitempty"`
}

// PhotoUpload 描述上传的照片文件。
type PhotoUpload struct {
	Filename    string
	Size        int64
	ContentType string
	Body        io.Reader
}

// OnboardingService 驱动宠物档案引导问答，草稿保存在 DraftRepository 中。
type OnboardingService interface {
	Start(ctx context.Context, sessionID, ownerName string) (*WizardState, error)
	Get(ctx context.Context, sessionID string) (*WizardState, error)
	Answer(ctx context.Context, sessionID string, ans wizard.Answer) (*WizardState, error)
	UploadPhoto(ctx context.Context, sessionID string, photo PhotoUpload) (*WizardState, error)
	SkipPhoto(ctx context.Context, sessionID string) (*WizardState, error)
	KeepPhoto(ctx context.Context, sessionID string) (*WizardState, error)
	Edit(ctx context.Context, sessionID string) (*WizardState, error)
	Complete(ctx context.Context, sessionID string) (*WizardState, error)
}

type onboardingService struct {
	sessionRepo repository.SessionRepository
	petRepo     repository.PetRepository
	draftRepo   repository.DraftRepository
	photos      storage.PhotoStore
	uploadCfg   config.UploadConfig
	now         func() time.Time
}

// NewOnboardingService 创建一个新的 OnboardingService 实例。
func NewOnboardingService(
	sessionRepo repository.SessionRepository,
	petRepo repository.PetRepository,
	draftRepo repository.DraftRepository,
	photos storage.PhotoStore,
	uploadCfg config.UploadConfig,
) OnboardingService {
	return &onboardingService{
		sessionRepo: sessionRepo,
		petRepo:     petRepo,
		draftRepo:   draftRepo,
		photos:      photos,
		uploadCfg:   uploadCfg,
		now:         time.Now,
	}
}

// Start 创建新的草稿并返回自我介绍与第一个问题。会话已有档案时直接返回该档案。
func (s *onboardingService) Start(ctx context.Context, sessionID, ownerName string) (*WizardState, error) {
	if err := s.requireSession(ctx, sessionID); err != nil {
		return nil, err
	}
	if pet, err := s.petRepo.FindBySessionID(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("查询宠物档案失败: %w", err)
	} else if pet != nil {
		return completedState(pet, nil), nil
	}

	owner := strings.TrimSpace(ownerName)
	if owner == "" {
		owner = model.DefaultOwnerName
	}
	draft := &model.WizardDraft{
		SessionID: sessionID,
		Step:      string(wizard.StepName),
		Pet:       model.Pet{OwnerName: owner},
		Transcript: []model.WizardTurn{
			botTurn(wizard.Greeting(owner)),
			botTurn(wizard.Prompt(wizard.StepName)),
		},
	}
	if err := s.save(ctx, draft); err != nil {
		return nil, err
	}
	log.Infow("引导问答开始", "sessionId", sessionID)
	return draftState(draft), nil
}

// Get 返回当前草稿的状态；草稿已提交时返回已保存的档案。
func (s *onboardingService) Get(ctx context.Context, sessionID string) (*WizardState, error) {
	draft, err := s.load(ctx, sessionID)
	if errors.Is(err, ErrWizardNotStarted) {
		pet, perr := s.petRepo.FindBySessionID(ctx, sessionID)
		if perr != nil {
			return nil, fmt.Errorf("查询宠物档案失败: %w", perr)
		}
		if pet != nil {
			return completedState(pet, nil), nil
		}
	}
	if err != nil {
		return nil, err
	}
	return draftState(draft), nil
}

// Answer 记录当前步骤的回答并前进一步。
func (s *onboardingService) Answer(ctx context.Context, sessionID string, ans wizard.Answer) (*WizardState, error) {
	draft, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	step := wizard.Step(draft.Step)
	echo, err := wizard.Apply(&draft.Pet, step, ans)
	switch {
	case errors.Is(err, wizard.ErrWrongInput), errors.Is(err, wizard.ErrUnknownStep):
		return nil, fmt.Errorf("%w: %s", ErrWizardStep, step)
	case err != nil:
		return nil, fmt.Errorf("%w: %w", ErrInvalidAnswer, err)
	}
	draft.Transcript = append(draft.Transcript, userTurn(echo, ""))
	s.advance(draft, step)
	if err := s.save(ctx, draft); err != nil {
		return nil, err
	}
	return draftState(draft), nil
}

// UploadPhoto 在 image 步骤上传照片，成功后前进到 personality。
func (s *onboardingService) UploadPhoto(ctx context.Context, sessionID string, photo PhotoUpload) (*WizardState, error) {
	draft, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if wizard.Step(draft.Step) != wizard.StepImage {
		return nil, fmt.Errorf("%w: %s", ErrWizardStep, draft.Step)
	}
	if photo.Size > s.uploadCfg.MaxPhotoBytes {
		return nil, ErrPhotoTooLarge
	}
	if !strings.HasPrefix(photo.ContentType, "image/") {
		return nil, ErrInvalidPhoto
	}

	objectName := s.photoObjectName(photo.Filename)
	url, err := s.photos.PutPhoto(ctx, objectName, photo.Body, photo.Size, photo.ContentType)
	if err != nil {
		log.Errorf("[OnboardingService] 上传照片失败: session=%s, object=%s, err=%v", sessionID, objectName, err)
		return nil, fmt.Errorf("%w: %w", ErrPhotoUpload, err)
	}

	draft.Pet.Image = url
	draft.Transcript = append(draft.Transcript, userTurn(wizard.PhotoUploadedEcho, url))
	s.advance(draft, wizard.StepImage)
	if err := s.save(ctx, draft); err != nil {
		return nil, err
	}
	return draftState(draft), nil
}

// SkipPhoto 跳过照片步骤。
func (s *onboardingService) SkipPhoto(ctx context.Context, sessionID string) (*WizardState, error) {
	draft, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if wizard.Step(draft.Step) != wizard.StepImage {
		return nil, fmt.Errorf("%w: %s", ErrWizardStep, draft.Step)
	}
	draft.Pet.Image = ""
	s.advance(draft, wizard.StepImage)
	if err := s.save(ctx, draft); err != nil {
		return nil, err
	}
	return draftState(draft), nil
}

// KeepPhoto 在修改流程中回到 image 步骤时保留已上传的照片并前进。
func (s *onboardingService) KeepPhoto(ctx context.Context, sessionID string) (*WizardState, error) {
	draft, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if wizard.Step(draft.Step) != wizard.StepImage {
		return nil, fmt.Errorf("%w: %s", ErrWizardStep, draft.Step)
	}
	if draft.Pet.Image == "" {
		return nil, ErrNoPhotoToKeep
	}
	s.advance(draft, wizard.StepImage)
	if err := s.save(ctx, draft); err != nil {
		return nil, err
	}
	return draftState(draft), nil
}

// Edit 从确认步骤回到 name，已填写的内容保留。
func (s *onboardingService) Edit(ctx context.Context, sessionID string) (*WizardState, error) {
	draft, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if wizard.Step(draft.Step) != wizard.StepCheckInformation {
		return nil, fmt.Errorf("%w: %s", ErrWizardStep, draft.Step)
	}
	draft.Step = string(wizard.StepName)
	draft.Transcript = append(draft.Transcript,
		userTurn(editEcho, ""),
		botTurn(wizard.Prompt(wizard.StepName)),
	)
	if err := s.save(ctx, draft); err != nil {
		return nil, err
	}
	return draftState(draft), nil
}

// Complete 保存档案并删除草稿。会话已有档案时不会再创建第二份。
func (s *onboardingService) Complete(ctx context.Context, sessionID string) (*WizardState, error) {
	draft, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if wizard.Step(draft.Step) != wizard.StepCheckInformation {
		return nil, fmt.Errorf("%w: %s", ErrWizardStep, draft.Step)
	}

	transcript := append(draft.Transcript, userTurn(confirmEcho, ""), botTurn(wizard.CompletionMessage))

	existing, err := s.petRepo.FindBySessionID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("查询宠物档案失败: %w", err)
	}
	pet := existing
	if pet == nil {
		pet = &draft.Pet
		pet.ID = uuid.NewString()
		pet.SessionID = sessionID
		if err := s.petRepo.Create(ctx, pet); err != nil {
			// 并发提交时唯一索引冲突，以已保存的档案为准
			saved, ferr := s.petRepo.FindBySessionID(ctx, sessionID)
			if ferr != nil || saved == nil {
				return nil, fmt.Errorf("保存宠物档案失败: %w", err)
			}
			pet = saved
		} else {
			log.Infow("宠物档案已保存", "sessionId", sessionID, "petId", pet.ID)
		}
	}

	if err := s.draftRepo.Delete(ctx, sessionID); err != nil {
		log.Warnf("[OnboardingService] 删除草稿失败: session=%s, err=%v", sessionID, err)
	}
	return completedState(pet, transcript), nil
}

func (s *onboardingService) requireSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrSessionRequired
	}
	ok, err := s.sessionRepo.Exists(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("查询会话失败: %w", err)
	}
	if !ok {
		return ErrSessionNotFound
	}
	return nil
}

func (s *onboardingService) load(ctx context.Context, sessionID string) (*model.WizardDraft, error) {
	if sessionID == "" {
		return nil, ErrSessionRequired
	}
	draft, err := s.draftRepo.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("读取草稿失败: %w", err)
	}
	if draft == nil {
		return nil, ErrWizardNotStarted
	}
	return draft, nil
}

func (s *onboardingService) save(ctx context.Context, draft *model.WizardDraft) error {
	draft.UpdatedAt = s.now()
	if err := s.draftRepo.Save(ctx, draft); err != nil {
		return fmt.Errorf("保存草稿失败: %w", err)
	}
	return nil
}

// advance 前进到 from 的下一步并追加对应的问题；到达确认步骤时附上档案汇总。
func (s *onboardingService) advance(draft *model.WizardDraft, from wizard.Step) {
	next := wizard.Next(from)
	draft.Step = string(next)
	draft.Transcript = append(draft.Transcript, botTurn(wizard.Prompt(next)))
	if next == wizard.StepCheckInformation {
		draft.Transcript = append(draft.Transcript, botTurn(wizard.Summary(draft.Pet)))
	}
}

// photoObjectName 生成 <prefix>/<unixmillis>_<random>.<ext> 形式的对象名。
func (s *onboardingService) photoObjectName(filename string) string {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(filename)), ".")
	if ext == "" {
		ext = "jpg"
	}
	random := strconv.FormatUint(rand.Uint64(), 36)
	return fmt.Sprintf("%s/%d_%s.%s", strings.Trim(s.uploadCfg.PathPrefix, "/"), s.now().UnixMilli(), random, ext)
}

func botTurn(text string) model.WizardTurn {
	return model.WizardTurn{Text: text, Sender: model.SenderBot}
}

func userTurn(text, image string) model.WizardTurn {
	return model.WizardTurn{Text: text, Sender: model.SenderUser, Image: image}
}

func draftState(draft *model.WizardDraft) *WizardState {
	step := wizard.Step(draft.Step)
	st := &WizardState{
		Step:        step,
		Prompt:      wizard.Prompt(step),
		Placeholder: wizard.Placeholder(step),
		Input:       wizard.Kind(step),
		Options:     wizard.Options(step),
		Transcript:  draft.Transcript,
		Draft:       draft.Pet,
	}
	if step == wizard.StepCheckInformation {
		st.Summary = wizard.Summary(draft.Pet)
	}
	return st
}

func completedState(pet *model.Pet, transcript []model.WizardTurn) *WizardState {
	return &WizardState{
		Step:       wizard.StepCheckInformation,
		Input:      wizard.InputConfirm,
		Transcript: transcript,
		Draft:      *pet,
		Completed:  true,
		Pet:        pet,
	}
}
