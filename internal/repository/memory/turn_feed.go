package memory

import (
	"context"
	"sync"

	"tikitaka-go/internal/model"
	"tikitaka-go/internal/repository"
)

type turnFeed struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]chan model.ChatMessage
}

// NewTurnFeed 返回进程内的 TurnFeed。订阅者处理过慢时丢弃消息，不阻塞发布方。
func NewTurnFeed() repository.TurnFeed {
	return &turnFeed{subs: make(map[string]map[int]chan model.ChatMessage)}
}

func (f *turnFeed) Publish(ctx context.Context, msg model.ChatMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs[repository.FeedChannel(msg.SessionID, msg.PetID)] {
		select {
		case ch <- msg:
		default:
		}
	}
	return nil
}

func (f *turnFeed) Subscribe(ctx context.Context, sessionID, petID string) (<-chan model.ChatMessage, func(), error) {
	key := repository.FeedChannel(sessionID, petID)
	ch := make(chan model.ChatMessage, 16)

	f.mu.Lock()
	f.nextID++
	id := f.nextID
	if f.subs[key] == nil {
		f.subs[key] = make(map[int]chan model.ChatMessage)
	}
	f.subs[key][id] = ch
	f.mu.Unlock()

	var once sync.Once
	done := make(chan struct{})
	cancel := func() {
		once.Do(func() {
			close(done)
			f.mu.Lock()
			delete(f.subs[key], id)
			if len(f.subs[key]) == 0 {
				delete(f.subs, key)
			}
			f.mu.Unlock()
			close(ch)
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()
	return ch, cancel, nil
}
