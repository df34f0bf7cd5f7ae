package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"tikitaka-go/internal/config"
	"tikitaka-go/internal/model"
	"tikitaka-go/pkg/token"
)

// 联系邮件的主题与正文模板。
const (
	contactSubject = "티키타카 문의하기🐾"
	contactBody    = "안녕하세요, 티키타카입니다.\n\n서비스 관련하여 궁금한 점이나 개선 사항을 아래에 자유롭게 적어주세요!\n\n---\n"
)

// ShareLinks 是分享菜单需要的全部链接。
type ShareLinks struct {
	ConversationURL string `json:"conversationUrl"`
	ServiceURL      string `json:"serviceUrl"`
	SharedURL       string `json:"sharedUrl"`
	Token           string `json:"token"`
	ContactMailto   string `json:"contactMailto"`
}

// Export 是导出的纯文本对话记录。
type Export struct {
	Filename string
	Content  string
}

// ShareService 负责生成分享链接、解析分享令牌与导出对话记录。
type ShareService interface {
	Share(ctx context.Context, sessionID, petID string) (*ShareLinks, error)
	Shared(ctx context.Context, shareToken string) (*Conversation, error)
	Export(ctx context.Context, viewerSession, targetSession, petID string) (*Export, error)
	ContactMailto() string
}

type shareService struct {
	chat       ChatService
	jwtManager *token.JWTManager
	baseURL    string
	contact    string
}

// NewShareService 创建一个新的 ShareService 实例。
func NewShareService(chat ChatService, jwtManager *token.JWTManager, serverCfg config.ServerConfig, shareCfg config.ShareConfig) ShareService {
	return &shareService{
		chat:       chat,
		jwtManager: jwtManager,
		baseURL:    strings.TrimRight(serverCfg.BaseURL, "/"),
		contact:    shareCfg.ContactEmail,
	}
}

func (s *shareService) Share(ctx context.Context, sessionID, petID string) (*ShareLinks, error) {
	conv, err := s.chat.Transcript(ctx, sessionID, "", petID)
	if err != nil {
		return nil, err
	}
	tok, err := s.jwtManager.GenerateShareToken(conv.SessionID, conv.Pet.ID)
	if err != nil {
		return nil, fmt.Errorf("生成分享令牌失败: %w", err)
	}
	q := url.Values{}
	q.Set("sessionId", conv.SessionID)
	q.Set("petId", conv.Pet.ID)
	return &ShareLinks{
		ConversationURL: s.baseURL + "/chat?" + q.Encode(),
		ServiceURL:      s.baseURL,
		SharedURL:       s.baseURL + "/shared/" + tok,
		Token:           tok,
		ContactMailto:   s.ContactMailto(),
	}, nil
}

func (s *shareService) Shared(ctx context.Context, shareToken string) (*Conversation, error) {
	claims, err := s.jwtManager.VerifyShareToken(shareToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidShareToken, err)
	}
	conv, err := s.chat.Transcript(ctx, "", claims.SessionID, claims.PetID)
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// Export 生成每行一条的纯文本记录，宠物的话以宠物名开头，用户的话以主人称呼开头。
func (s *shareService) Export(ctx context.Context, viewerSession, targetSession, petID string) (*Export, error) {
	conv, err := s.chat.Transcript(ctx, viewerSession, targetSession, petID)
	if err != nil {
		return nil, err
	}
	owner := conv.Pet.OwnerName
	if owner == "" {
		owner = model.DefaultOwnerName
	}
	var sb strings.Builder
	for _, t := range conv.Turns {
		speaker := conv.Pet.Name
		if t.Sender == model.SenderUser {
			speaker = owner
		}
		fmt.Fprintf(&sb, "%s: %s\n", speaker, strings.ReplaceAll(t.Text, "\n", " "))
	}
	return &Export{
		Filename: fmt.Sprintf("tikitaka_%s.txt", conv.Pet.Name),
		Content:  sb.String(),
	}, nil
}

// ContactMailto 返回联系邮件链接。
func (s *shareService) ContactMailto() string {
	return "mailto:" + s.contact + "?subject=" + mailtoEscape(contactSubject) + "&body=" + mailtoEscape(contactBody)
}

func mailtoEscape(v string) string {
	return strings.ReplaceAll(url.QueryEscape(v), "+", "%20")
}
