package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"counsel/cmd/internal/pgtest"
)

// Integration tests are opt-in and require COUNSEL_DATABASE_URL.

func mustNewIdentityStore(t *testing.T) *PostgresStore {
	t.Helper()

	pool := pgtest.Open(t)
	schema := pgtest.Schema(t, pool)

	s, err := NewPostgresStore(pool, WithSchema(schema))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func TestPostgresStore_CreateUser_ConflictEmail_CaseInsensitive(t *testing.T) {
	t.Parallel()

	s := mustNewIdentityStore(t)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	_, err := s.CreateUser(ctx, CreateUserInput{
		Name: "First", Email: "User@Example.com", PasswordHash: "h1", Role: RoleClient,
	})
	if err != nil {
		t.Fatalf("create user 1: %v", err)
	}

	_, err = s.CreateUser(ctx, CreateUserInput{
		Name: "Second", Email: "user@example.COM", PasswordHash: "h2", Role: RoleClient,
	})
	if err == nil {
		t.Fatalf("expected conflict, got nil")
	}
	var ce ConflictError
	if !errors.As(err, &ce) || ce.Field != "email" {
		t.Fatalf("expected email conflict, got: %v", err)
	}
}

func TestPostgresStore_RoundTripAndLookups(t *testing.T) {
	t.Parallel()

	s := mustNewIdentityStore(t)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Microsecond)
	spec := "Cyber Lawyer"
	lawyer, err := s.CreateUser(ctx, CreateUserInput{
		Name: "Lee", Email: "lee@example.com", PasswordHash: "hash-lee", Role: RoleLawyer,
		Specialization: &spec, Profile: Profile{Location: "Pune"}, Now: now,
	})
	if err != nil {
		t.Fatalf("create lawyer: %v", err)
	}
	client, err := s.CreateUser(ctx, CreateUserInput{
		Name: "Cam", Email: "cam@example.com", PasswordHash: "hash-cam", Role: RoleClient, Now: now.Add(time.Second),
	})
	if err != nil {
		t.Fatalf("create client: %v", err)
	}

	got, err := s.GetUserByID(ctx, lawyer.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if got.Name != "Lee" || got.Role != RoleLawyer || got.Specialization == nil || *got.Specialization != spec {
		t.Fatalf("unexpected user: %+v", got)
	}
	if got.Profile.Location != "Pune" {
		t.Fatalf("location=%q", got.Profile.Location)
	}

	ua, err := s.GetUserAuthByEmail(ctx, "CAM@example.com")
	if err != nil {
		t.Fatalf("get auth: %v", err)
	}
	if ua.User.ID != client.ID || ua.PasswordHash != "hash-cam" {
		t.Fatalf("unexpected auth row: %+v", ua)
	}

	lawyers, err := s.ListUsers(ctx, ListFilter{Role: RoleLawyer})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(lawyers) != 1 || lawyers[0].ID != lawyer.ID {
		t.Fatalf("unexpected lawyers: %+v", lawyers)
	}

	all, err := s.ListUsers(ctx, ListFilter{})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 || all[0].ID != lawyer.ID || all[1].ID != client.ID {
		t.Fatalf("unexpected order: %+v", all)
	}

	names, err := s.DisplayNames(ctx, []string{lawyer.ID, client.ID, "not-a-uuid"})
	if err != nil {
		t.Fatalf("display names: %v", err)
	}
	if names[lawyer.ID] != "Lee" || names[client.ID] != "Cam" || len(names) != 2 {
		t.Fatalf("unexpected names: %v", names)
	}

	if _, err := s.GetUserByID(ctx, "00000000-0000-0000-0000-000000000000"); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestNewPostgresStore_RejectsBadSchema(t *testing.T) {
	t.Parallel()

	if _, err := NewPostgresStore(nil, WithSchema("bad-schema;")); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := NewPostgresStore(nil); err == nil {
		t.Fatalf("expected nil pool error")
	}
}

func TestPostgresStore_Verifications(t *testing.T) {
	t.Parallel()
	exerciseVerifications(t, mustNewIdentityStore(t))
}

func TestPostgresStore_PasswordReset(t *testing.T) {
	t.Parallel()
	exercisePasswordReset(t, mustNewIdentityStore(t))
}
