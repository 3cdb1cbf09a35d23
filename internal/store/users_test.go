package store

import (
	"context"
	"testing"
)

func TestCreateUserAndLookup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "alice@example.com", "hashed", "Alice")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	byEmail, err := s.UserByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("UserByEmail: %v", err)
	}
	if byEmail.ID != u.ID || byEmail.Name != "Alice" {
		t.Errorf("got %+v", byEmail)
	}

	byID, err := s.UserByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("UserByID: %v", err)
	}
	if byID.Email != "alice@example.com" {
		t.Errorf("email = %q", byID.Email)
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateUser(ctx, "bob@example.com", "h1", "Bob"); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if _, err := s.CreateUser(ctx, "bob@example.com", "h2", "Robert"); err != ErrEmailTaken {
		t.Errorf("got %v, want ErrEmailTaken", err)
	}
}

func TestUserByEmailNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.UserByEmail(context.Background(), "ghost@example.com"); err != ErrNotFound {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}
