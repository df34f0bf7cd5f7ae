package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"tikitaka-go/internal/config"
	"tikitaka-go/internal/middleware"
	"tikitaka-go/internal/service"
	"tikitaka-go/pkg/log"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// ChatHandler 负责聊天页面的接口与实时推送。
type ChatHandler struct {
	chatService service.ChatService
	limitNotice string
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(chatService service.ChatService, chatCfg config.ChatConfig) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		limitNotice: fmt.Sprintf("%d개의 메시지가 모두 소진되었습니다. 빠른 시일 내에 신규 서비스로 찾아뵙겠습니다! 🙏", chatCfg.MessageCap),
	}
}

// SendRequest 是发送消息的请求体。SessionID 指向分享的对话时发送会被拒绝。
type SendRequest struct {
	Text      string `json:"text"`
	SessionID string `json:"sessionId"`
	PetID     string `json:"petId"`
}

// AdRequest 是观看广告的请求体。
type AdRequest struct {
	PetID string `json:"petId"`
}

// Transcript 返回对话记录与发送额度。查询参数 sessionId 与请求方不同时为只读视图。
func (h *ChatHandler) Transcript(c *gin.Context) {
	conv, err := h.chatService.Transcript(c.Request.Context(), middleware.SessionID(c), c.Query("sessionId"), c.Query("petId"))
	if err != nil {
		writeError(c, err, msgReplyFailed)
		return
	}
	success(c, conv)
}

// Send 发送一条消息并返回宠物的回复。
func (h *ChatHandler) Send(c *gin.Context) {
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	res, err := h.chatService.Send(c.Request.Context(), middleware.SessionID(c), req.SessionID, req.PetID, req.Text)
	if err != nil {
		if errors.Is(err, service.ErrMessageLimit) {
			abort(c, http.StatusForbidden, h.limitNotice, gin.H{"limitReached": true})
			return
		}
		writeError(c, err, msgSendFailed)
		return
	}
	success(c, res)
}

// WatchAd 记录一次广告观看并返回新的额度。
func (h *ChatHandler) WatchAd(c *gin.Context) {
	var req AdRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	st, err := h.chatService.WatchAd(c.Request.Context(), middleware.SessionID(c), req.PetID)
	if err != nil {
		writeError(c, err, msgSendFailed)
		return
	}
	success(c, st)
}

// Watch 把对话中新产生的消息通过 WebSocket 推送给客户端。
// 浏览器的 WebSocket 无法设置请求头，会话 ID 通过 viewerSessionId 查询参数传递。
func (h *ChatHandler) Watch(c *gin.Context) {
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	turns, stop, err := h.chatService.Watch(ctx, middleware.SessionID(c), c.Query("sessionId"), c.Query("petId"))
	if err != nil {
		writeError(c, err, msgReplyFailed)
		return
	}
	defer stop()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()
	log.Infof("WebSocket 连接已建立, session=%s, pet=%s", middleware.SessionID(c), c.Query("petId"))

	// 只读取控制帧；客户端关闭连接时结束推送
	go func() {
		defer cancel()
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case turn, ok := <-turns:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(gin.H{"type": "turn", "turn": turn}); err != nil {
				log.Warnf("推送 WebSocket 消息失败: %v", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
