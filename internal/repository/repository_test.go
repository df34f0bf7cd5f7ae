package repository

import (
	"context"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tikitaka-go/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// 内存库按连接隔离，只保留一条连接
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestSessionRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository(newTestDB(t))

	if ok, err := repo.Exists(ctx, "s1"); err != nil || ok {
		t.Fatalf("expected missing session, got %v / %v", ok, err)
	}
	if err := repo.Create(ctx, &model.Session{ID: "s1"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if ok, err := repo.Exists(ctx, "s1"); err != nil || !ok {
		t.Fatalf("expected existing session, got %v / %v", ok, err)
	}
}

func TestPetRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewPetRepository(newTestDB(t))

	if pet, err := repo.FindBySessionID(ctx, "s1"); err != nil || pet != nil {
		t.Fatalf("expected nil pet, got %v / %v", pet, err)
	}

	pet := &model.Pet{
		ID:          "p1",
		SessionID:   "s1",
		Name:        "토토",
		Age:         3,
		Type:        "강아지",
		Personality: []string{"활발한", "애교많은"},
		Friend:      []string{"사람"},
		OwnerName:   model.DefaultOwnerName,
	}
	if err := repo.Create(ctx, pet); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.FindBySessionID(ctx, "s1")
	if err != nil || got == nil {
		t.Fatalf("find by session: %v / %v", got, err)
	}
	if got.Name != "토토" || got.Age != 3 || got.Type != "강아지" {
		t.Fatalf("unexpected pet %+v", got)
	}
	if len(got.Personality) != 2 || got.Personality[1] != "애교많은" {
		t.Fatalf("unexpected personality %v", got.Personality)
	}

	byID, err := repo.FindByID(ctx, "p1")
	if err != nil || byID == nil || byID.SessionID != "s1" {
		t.Fatalf("find by id: %v / %v", byID, err)
	}
	if missing, err := repo.FindByID(ctx, "nope"); err != nil || missing != nil {
		t.Fatalf("expected nil for unknown id, got %v / %v", missing, err)
	}

	dup := &model.Pet{ID: "p2", SessionID: "s1", Name: "도리"}
	if err := repo.Create(ctx, dup); err == nil {
		t.Fatalf("second pet for the same session must be rejected")
	}
}

func TestChatMessageRepositoryOrderingAndCount(t *testing.T) {
	ctx := context.Background()
	repo := NewChatMessageRepository(newTestDB(t))

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	msgs := []model.ChatMessage{
		{SessionID: "s1", PetID: "p1", Content: "second", Sender: model.SenderBot, CreatedAt: base.Add(time.Second)},
		{SessionID: "s1", PetID: "p1", Content: "first", Sender: model.SenderUser, CreatedAt: base},
		{SessionID: "s1", PetID: "p1", Content: "third", Sender: model.SenderUser, CreatedAt: base.Add(time.Second)},
		{SessionID: "s1", PetID: "p2", Content: "other pet", Sender: model.SenderUser, CreatedAt: base},
	}
	for i := range msgs {
		if err := repo.Create(ctx, &msgs[i]); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	list, err := repo.ListBySessionAndPet(ctx, "s1", "p1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var contents []string
	for _, m := range list {
		contents = append(contents, m.Content)
	}
	if len(contents) != 3 || contents[0] != "first" || contents[1] != "second" || contents[2] != "third" {
		t.Fatalf("unexpected order %v", contents)
	}

	n, err := repo.CountBySender(ctx, "s1", "p1", model.SenderUser)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 user turns, got %d / %v", n, err)
	}
}

func TestFeedbackRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewFeedbackRepository(newTestDB(t))

	if fb, err := repo.FindBySessionID(ctx, "s1"); err != nil || fb != nil {
		t.Fatalf("expected no feedback, got %v / %v", fb, err)
	}
	comment := "재밌어요"
	if err := repo.Create(ctx, &model.Feedback{SessionID: "s1", PetID: "p1", Rating: 5, Comment: &comment}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Create(ctx, &model.Feedback{SessionID: "s2", PetID: "p2", Rating: 3}); err != nil {
		t.Fatalf("create: %v", err)
	}

	fb, err := repo.FindBySessionID(ctx, "s1")
	if err != nil || fb == nil {
		t.Fatalf("find: %v / %v", fb, err)
	}
	if fb.Rating != 5 || fb.Comment == nil || *fb.Comment != comment || fb.PetID != "p1" {
		t.Fatalf("unexpected feedback %+v", fb)
	}

	if err := repo.Create(ctx, &model.Feedback{SessionID: "s1", Rating: 1}); err == nil {
		t.Fatalf("second feedback for the same session must be rejected")
	}

	list, total, err := repo.FindWithPagination(ctx, 0, 1)
	if err != nil {
		t.Fatalf("paginate: %v", err)
	}
	if total != 2 || len(list) != 1 {
		t.Fatalf("expected total 2 and 1 item, got %d / %d", total, len(list))
	}
}
