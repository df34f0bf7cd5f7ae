package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"tikitaka-go/internal/config"
	"tikitaka-go/internal/model"
	"tikitaka-go/pkg/llm"
	"tikitaka-go/pkg/tasks"
)

func TestEvaluateGateFlatCap(t *testing.T) {
	cfg := config.ChatConfig{MessageCap: 10}
	if st := EvaluateGate(cfg, 9, 0); st.LimitReached || st.Remaining != 1 {
		t.Fatalf("count 9 must be allowed, got %+v", st)
	}
	st := EvaluateGate(cfg, 10, 3)
	if !st.LimitReached || st.AdRequired || st.Remaining != 0 {
		t.Fatalf("count 10 must hit the cap without ad requirement, got %+v", st)
	}
}

func TestEvaluateGateWithAds(t *testing.T) {
	cfg := config.ChatConfig{MessageCap: 10, AdGate: config.AdGateConfig{Enabled: true, Interval: 5}}
	if st := EvaluateGate(cfg, 10, 0); !st.LimitReached || !st.AdRequired {
		t.Fatalf("cap without ads must require an ad, got %+v", st)
	}
	if st := EvaluateGate(cfg, 14, 1); st.LimitReached || st.Limit != 15 {
		t.Fatalf("one ad must unlock 5 more, got %+v", st)
	}
	if st := EvaluateGate(cfg, 15, 1); !st.AdRequired {
		t.Fatalf("exhausted ad allowance must require another ad, got %+v", st)
	}
}

func TestSendPersistsTurnsAndSendsOnlyLatestInput(t *testing.T) {
	f := newFixture(t)
	pet := f.mustPet(t, "s1", "p1")
	svc := f.chatService()
	ctx := context.Background()

	if _, err := svc.Send(ctx, "s1", "", "", "첫 번째"); err != nil {
		t.Fatalf("first send: %v", err)
	}
	res, err := svc.Send(ctx, "s1", "", pet.ID, "  간식 먹을래?  ")
	if err != nil {
		t.Fatalf("second send: %v", err)
	}
	if res.UserTurn.Text != "간식 먹을래?" || res.Reply.Text != "멍멍! 반가워" || res.Reply.Sender != model.SenderBot {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Status.Count != 2 || res.Status.Remaining != 8 {
		t.Fatalf("unexpected status %+v", res.Status)
	}

	if len(f.llm.lastMsg) != 2 {
		t.Fatalf("expected system + latest user message, got %d messages", len(f.llm.lastMsg))
	}
	if f.llm.lastMsg[0].Role != llm.RoleSystem || !strings.Contains(f.llm.lastMsg[0].Content, "토토") {
		t.Fatalf("unexpected system message %+v", f.llm.lastMsg[0])
	}
	if f.llm.lastMsg[1].Role != llm.RoleUser || f.llm.lastMsg[1].Content != "간식 먹을래?" {
		t.Fatalf("unexpected user message %+v", f.llm.lastMsg[1])
	}

	conv, err := svc.Transcript(ctx, "s1", "", "p1")
	if err != nil {
		t.Fatalf("transcript: %v", err)
	}
	if len(conv.Turns) != 5 {
		t.Fatalf("expected greeting + 4 turns, got %d", len(conv.Turns))
	}
	if conv.Turns[0].Text != "안녕, 나 토토! 이렇게 보니 신기해 민지! 잘 지냈어?" || conv.Turns[0].ID != 0 {
		t.Fatalf("unexpected greeting %+v", conv.Turns[0])
	}
	if conv.Turns[1].Sender != model.SenderUser || conv.Turns[2].Sender != model.SenderBot {
		t.Fatalf("turns must alternate user/bot: %+v", conv.Turns)
	}
	if f.publisher.count(tasks.EventTurn) != 4 {
		t.Fatalf("expected 4 turn events, got %d", f.publisher.count(tasks.EventTurn))
	}
}

func TestSendRejectsEmptyText(t *testing.T) {
	f := newFixture(t)
	f.mustPet(t, "s1", "p1")
	_, err := f.chatService().Send(context.Background(), "s1", "", "p1", "   ")
	if !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	if f.llm.calls != 0 {
		t.Fatalf("completion must not be called")
	}
}

func TestSendCapBoundary(t *testing.T) {
	f := newFixture(t)
	f.mustPet(t, "s1", "p1")
	svc := f.chatService()
	ctx := context.Background()

	f.seedUserTurns(t, "s1", "p1", 9)
	if _, err := svc.Send(ctx, "s1", "", "p1", "아홉 번째 다음"); err != nil {
		t.Fatalf("count 9 must allow sending: %v", err)
	}
	_, err := svc.Send(ctx, "s1", "", "p1", "열한 번째")
	if !errors.Is(err, ErrMessageLimit) {
		t.Fatalf("count 10 must refuse with ErrMessageLimit, got %v", err)
	}
	n, _ := f.messages.CountBySender(ctx, "s1", "p1", model.SenderUser)
	if n != 10 {
		t.Fatalf("refused send must not persist, got %d user turns", n)
	}
}

func TestSendAdGate(t *testing.T) {
	f := newFixture(t)
	f.chatCfg.AdGate = config.AdGateConfig{Enabled: true, Interval: 5}
	f.mustPet(t, "s1", "p1")
	svc := f.chatService()
	ctx := context.Background()

	f.seedUserTurns(t, "s1", "p1", 10)
	if _, err := svc.Send(ctx, "s1", "", "p1", "더 얘기하자"); !errors.Is(err, ErrAdRequired) {
		t.Fatalf("expected ErrAdRequired, got %v", err)
	}
	st, err := svc.WatchAd(ctx, "s1", "p1")
	if err != nil {
		t.Fatalf("watch ad: %v", err)
	}
	if st.AdViews != 1 || st.Remaining != 5 {
		t.Fatalf("unexpected status after ad %+v", st)
	}
	if _, err := svc.Send(ctx, "s1", "", "p1", "더 얘기하자"); err != nil {
		t.Fatalf("send after ad: %v", err)
	}
}

func TestWatchAdDisabled(t *testing.T) {
	f := newFixture(t)
	f.mustPet(t, "s1", "p1")
	if _, err := f.chatService().WatchAd(context.Background(), "s1", "p1"); !errors.Is(err, ErrAdGateDisabled) {
		t.Fatalf("expected ErrAdGateDisabled, got %v", err)
	}
}

func TestSendNullCompletionSkipPolicy(t *testing.T) {
	f := newFixture(t)
	f.chatCfg.EmptyReplyPolicy = EmptyReplySkip
	f.llm.reply = nil
	f.mustPet(t, "s1", "p1")
	ctx := context.Background()

	_, err := f.chatService().Send(ctx, "s1", "", "p1", "안녕")
	if !errors.Is(err, ErrEmptyCompletion) {
		t.Fatalf("expected ErrEmptyCompletion, got %v", err)
	}
	bots, _ := f.messages.CountBySender(ctx, "s1", "p1", model.SenderBot)
	users, _ := f.messages.CountBySender(ctx, "s1", "p1", model.SenderUser)
	if bots != 0 || users != 1 {
		t.Fatalf("null reply must not be persisted; bots=%d users=%d", bots, users)
	}
}

func TestSendNullCompletionFallbackPolicy(t *testing.T) {
	f := newFixture(t)
	f.llm.reply = nil
	f.mustPet(t, "s1", "p1")
	ctx := context.Background()

	res, err := f.chatService().Send(ctx, "s1", "", "p1", "안녕")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if res.Reply.Text != "음... 다시 말해줄래?" {
		t.Fatalf("expected fallback reply, got %q", res.Reply.Text)
	}
	bots, _ := f.messages.CountBySender(ctx, "s1", "p1", model.SenderBot)
	if bots != 1 {
		t.Fatalf("fallback reply must be persisted, got %d", bots)
	}
}

func TestSendCompletionFailureKeepsUserTurn(t *testing.T) {
	f := newFixture(t)
	f.llm.err = errors.New("timeout")
	f.mustPet(t, "s1", "p1")
	ctx := context.Background()

	_, err := f.chatService().Send(ctx, "s1", "", "p1", "안녕")
	if !errors.Is(err, ErrCompletionFailed) {
		t.Fatalf("expected ErrCompletionFailed, got %v", err)
	}
	users, _ := f.messages.CountBySender(ctx, "s1", "p1", model.SenderUser)
	if users != 1 {
		t.Fatalf("user turn must stay persisted, got %d", users)
	}
	// 失败后发送锁已释放
	if _, err := f.chatService().Send(ctx, "s1", "", "p1", "다시"); !errors.Is(err, ErrCompletionFailed) {
		t.Fatalf("expected another completion failure, got %v", err)
	}
}

func TestSendSharedChatIsReadOnly(t *testing.T) {
	f := newFixture(t)
	f.mustPet(t, "owner", "p1")
	f.mustSession(t, "visitor")
	svc := f.chatService()
	ctx := context.Background()

	if _, err := svc.Send(ctx, "visitor", "owner", "p1", "안녕"); !errors.Is(err, ErrReadOnlyChat) {
		t.Fatalf("expected ErrReadOnlyChat, got %v", err)
	}
	conv, err := svc.Transcript(ctx, "visitor", "owner", "p1")
	if err != nil {
		t.Fatalf("shared transcript: %v", err)
	}
	if !conv.Status.ReadOnly || conv.SessionID != "owner" {
		t.Fatalf("shared transcript must be read-only, got %+v", conv.Status)
	}
}

func TestSendInFlight(t *testing.T) {
	f := newFixture(t)
	f.mustPet(t, "s1", "p1")
	ctx := context.Background()
	if _, ok, _ := f.quota.AcquireSendLock(ctx, "s1", "p1", time.Minute); !ok {
		t.Fatalf("lock setup failed")
	}
	if _, err := f.chatService().Send(ctx, "s1", "", "p1", "안녕"); !errors.Is(err, ErrSendInFlight) {
		t.Fatalf("expected ErrSendInFlight, got %v", err)
	}
}

func TestSendLockOutlivesSlowCompletion(t *testing.T) {
	f := newFixture(t)
	f.mustPet(t, "s1", "p1")
	f.chatCfg.SendLockSeconds = 1
	f.llm.delay = 1500 * time.Millisecond
	svc := f.chatService()
	ctx := context.Background()

	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.Send(ctx, "s1", "", "p1", "천천히 대답해줘")
		firstErr <- err
	}()

	time.Sleep(1100 * time.Millisecond)
	if _, err := svc.Send(ctx, "s1", "", "p1", "아직이야?"); !errors.Is(err, ErrSendInFlight) {
		t.Fatalf("second send during a slow completion must be refused, got %v", err)
	}
	if err := <-firstErr; err != nil {
		t.Fatalf("first send: %v", err)
	}
	f.llm.mu.Lock()
	peak := f.llm.peak
	f.llm.mu.Unlock()
	if peak != 1 {
		t.Fatalf("expected one completion in flight, got %d", peak)
	}

	f.llm.delay = 0
	if _, err := svc.Send(ctx, "s1", "", "p1", "이제 돼?"); err != nil {
		t.Fatalf("lock must be released after the first send: %v", err)
	}
}

func TestTranscriptUnknownPet(t *testing.T) {
	f := newFixture(t)
	f.mustPet(t, "s1", "p1")
	f.mustPet(t, "s2", "p2")
	svc := f.chatService()
	if _, err := svc.Transcript(context.Background(), "s1", "", "p2"); !errors.Is(err, ErrPetNotFound) {
		t.Fatalf("pet of another session must not resolve, got %v", err)
	}
	if _, err := svc.Transcript(context.Background(), "s3", "", ""); !errors.Is(err, ErrPetNotFound) {
		t.Fatalf("session without pet must return ErrPetNotFound, got %v", err)
	}
}

func TestWatchReceivesNewTurns(t *testing.T) {
	f := newFixture(t)
	f.mustPet(t, "s1", "p1")
	svc := f.chatService()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	turns, stop, err := svc.Watch(ctx, "viewer", "s1", "p1")
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer stop()

	if _, err := svc.Send(ctx, "s1", "", "p1", "안녕"); err != nil {
		t.Fatalf("send: %v", err)
	}
	var got []model.Turn
	timeout := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case turn := <-turns:
			got = append(got, turn)
		case <-timeout:
			t.Fatalf("timed out, got %d turns", len(got))
		}
	}
	if got[0].Sender != model.SenderUser || got[1].Sender != model.SenderBot {
		t.Fatalf("unexpected turns %+v", got)
	}
}
