package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/agrihub-davao/chat-backend/internal/convkey"
	"github.com/agrihub-davao/chat-backend/internal/domain"
	"github.com/agrihub-davao/chat-backend/internal/repo"
)

// repoShim adapts the repo package functions to SummaryRepo.
type repoShim struct{}

func (repoShim) UpsertSummary(ctx context.Context, db *gorm.DB, key, a, b, body, senderID string, at time.Time) error {
	return repo.UpsertSummary(ctx, db, key, a, b, body, senderID, at)
}
func (repoShim) GetSummary(ctx context.Context, db *gorm.DB, key string) (*domain.ConversationSummary, error) {
	return repo.GetSummary(ctx, db, key)
}
func (repoShim) ListSummariesForUser(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.ConversationSummary, error) {
	return repo.ListSummariesForUser(ctx, db, userID, offset, limit)
}
func (repoShim) CountSummariesForUser(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	return repo.CountSummariesForUser(ctx, db, userID)
}

// failingRepo returns err from every call.
type failingRepo struct{ err error }

func (f failingRepo) UpsertSummary(context.Context, *gorm.DB, string, string, string, string, string, time.Time) error {
	return f.err
}
func (f failingRepo) GetSummary(context.Context, *gorm.DB, string) (*domain.ConversationSummary, error) {
	return nil, f.err
}
func (f failingRepo) ListSummariesForUser(context.Context, *gorm.DB, string, int, int) ([]domain.ConversationSummary, error) {
	return nil, f.err
}
func (f failingRepo) CountSummariesForUser(context.Context, *gorm.DB, string) (int64, error) {
	return 0, f.err
}

func newConvSvc(t *testing.T) *ConversationService {
	t.Helper()
	s := NewConversationService(newSvcDB(t), repoShim{})
	s.Now = clock(time.Date(2025, 7, 1, 7, 0, 0, 0, time.UTC))
	return s
}

func TestConversationService_Key(t *testing.T) {
	s := newConvSvc(t)
	k1, err := s.Key("storeB", "farmerA")
	if err != nil || k1 != "farmerA_storeB" {
		t.Fatalf("Key = %q, %v", k1, err)
	}
	if _, err := s.Key("x", "x"); !errors.Is(err, convkey.ErrSelfConversation) {
		t.Fatalf("expected ErrSelfConversation, got %v", err)
	}
}

func TestConversationService_Upsert_AbsentThenExists(t *testing.T) {
	s := newConvSvc(t)
	ctx := context.Background()
	pair, _ := convkey.Participants("storeB", "farmerA")

	if _, err := s.Get(ctx, "farmerA", "storeB"); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("expected ABSENT summary, got %v", err)
	}

	if err := s.Upsert(ctx, pair, "Hi", "farmerA"); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if err := s.Upsert(ctx, pair, "Hello", "storeB"); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	conv, err := s.Get(ctx, "farmerA", "storeB")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if conv.Key != "farmerA_storeB" || conv.PeerID != "storeB" {
		t.Fatalf("unexpected conversation: %+v", conv)
	}
	if conv.LastMessage.Body != "Hello" || conv.LastMessage.SenderID != "storeB" {
		t.Fatalf("last message = %+v", conv.LastMessage)
	}
	if !conv.UpdatedAt.After(conv.CreatedAt) {
		t.Fatalf("created_at must stay fixed while updated_at advances")
	}

	var n int64
	s.DB.Model(&domain.ConversationSummary{}).Count(&n)
	if n != 1 {
		t.Fatalf("summary rows = %d; want 1", n)
	}
}

func TestConversationService_Upsert_Validation(t *testing.T) {
	s := newConvSvc(t)
	ctx := context.Background()

	if err := s.Upsert(ctx, convkey.Pair{"a", "a"}, "x", "a"); !errors.Is(err, convkey.ErrSelfConversation) {
		t.Fatalf("expected ErrSelfConversation, got %v", err)
	}
	if err := s.Upsert(ctx, convkey.Pair{"a", ""}, "x", "a"); !errors.Is(err, convkey.ErrEmptyParticipant) {
		t.Fatalf("expected ErrEmptyParticipant, got %v", err)
	}
	if err := s.Upsert(ctx, convkey.Pair{"a", "b"}, "x", "c"); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}

	// An unsorted pair is normalised to the canonical key.
	if err := s.Upsert(ctx, convkey.Pair{"b", "a"}, "x", "b"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := s.Get(ctx, "a", "b"); err != nil {
		t.Fatalf("expected summary under a_b: %v", err)
	}
}

func TestConversationService_ListPage(t *testing.T) {
	s := newConvSvc(t)
	ctx := context.Background()

	items, total, err := s.ListPage(ctx, "farmerA", 1, 10)
	if err != nil || total != 0 || len(items) != 0 || items == nil {
		t.Fatalf("empty list: %v %d %v", items, total, err)
	}

	mk := func(a, b, sender string) {
		t.Helper()
		p, _ := convkey.Participants(a, b)
		if err := s.Upsert(ctx, p, "x", sender); err != nil {
			t.Fatal(err)
		}
	}
	mk("farmerA", "storeB", "farmerA")
	mk("farmerA", "consumerC", "consumerC")
	mk("storeB", "consumerC", "storeB")

	items, total, err = s.ListPage(ctx, "farmerA", 0, 0)
	if err != nil {
		t.Fatalf("ListPage: %v", err)
	}
	if total != 2 || len(items) != 2 {
		t.Fatalf("total=%d len=%d; want 2", total, len(items))
	}
	if items[0].PeerID != "consumerC" || items[1].PeerID != "storeB" {
		t.Fatalf("unexpected peers/order: %s, %s", items[0].PeerID, items[1].PeerID)
	}
}

func TestConversationService_StoreErrors(t *testing.T) {
	boom := errors.New("boom")
	s := NewConversationService(nil, failingRepo{err: boom})
	ctx := context.Background()

	if _, _, err := s.ListPage(ctx, "u", 1, 10); !errors.Is(err, ErrStoreUnavailable) || !errors.Is(err, boom) {
		t.Fatalf("ListPage err = %v", err)
	}
	if _, err := s.Get(ctx, "u", "v"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("Get err = %v", err)
	}
	if err := s.Upsert(ctx, convkey.Pair{"u", "v"}, "x", "u"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("Upsert err = %v", err)
	}
}
