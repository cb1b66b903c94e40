package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/qamqor-ai/qamqor/internal/conversation"
)

func TestSessionRoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()

	sess := conversation.NewSession(conversation.DemoUser(), "", time.Now())
	if _, err := sess.CreateTurn(time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveSession(ctx, sess); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	got, err := s.LoadSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	if got.ID != sess.ID || len(got.Turns) != 1 {
		t.Errorf("loaded session = %+v", got)
	}
}

func TestLoadSession_NotFound(t *testing.T) {
	s := New()
	_, err := s.LoadSession(context.Background(), "missing")
	if !errors.Is(err, conversation.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestTurnRoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()

	sess := conversation.NewSession(conversation.DemoUser(), "", time.Now())
	turn, err := sess.CreateTurn(time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SaveTurn(ctx, turn); err != nil {
		t.Fatalf("SaveTurn: %v", err)
	}

	got, err := s.LoadTurn(ctx, turn.ID)
	if err != nil {
		t.Fatalf("LoadTurn: %v", err)
	}
	if got.ID != turn.ID || got.TurnNumber != 1 {
		t.Errorf("loaded turn = %+v", got)
	}

	if _, err := s.LoadTurn(ctx, "missing"); !errors.Is(err, conversation.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestEnsureUser_FirstWriteWins(t *testing.T) {
	s := New()
	ctx := context.Background()

	first := &conversation.User{ID: "u-1", Name: "First", Language: "ru"}
	second := &conversation.User{ID: "u-1", Name: "Second", Language: "kk"}

	if err := s.EnsureUser(ctx, first); err != nil {
		t.Fatal(err)
	}
	if err := s.EnsureUser(ctx, second); err != nil {
		t.Fatal(err)
	}

	got, err := s.LoadUser(ctx, "u-1")
	if err != nil {
		t.Fatalf("LoadUser: %v", err)
	}
	if got.Name != "First" {
		t.Errorf("Name = %q, EnsureUser must not overwrite an existing record", got.Name)
	}

	if _, err := s.LoadUser(ctx, "missing"); !errors.Is(err, conversation.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestPing(t *testing.T) {
	if err := New().Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}
