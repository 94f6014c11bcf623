package repository

import (
	"context"
	"testing"

	"github.com/antonrybalko/wfm-mbaas-go/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryUserRepository(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()

	require.NoError(t, repo.SaveUser(ctx, &domain.User{ID: "u2", Username: "trever", Password: "hash"}))
	require.NoError(t, repo.SaveUser(ctx, &domain.User{ID: "u1", Username: "daisy", Password: "hash"}))

	t.Run("ListOrderedByUsername", func(t *testing.T) {
		users, err := repo.ListUsers(ctx)
		require.NoError(t, err)
		require.Len(t, users, 2)
		assert.Equal(t, "daisy", users[0].Username)
		assert.Equal(t, "trever", users[1].Username)
	})

	t.Run("GetByIDAndUsername", func(t *testing.T) {
		u, err := repo.GetUser(ctx, "u2")
		require.NoError(t, err)
		assert.Equal(t, "trever", u.Username)
		assert.False(t, u.CreatedAt.IsZero())

		u, err = repo.GetUserByUsername(ctx, "daisy")
		require.NoError(t, err)
		assert.Equal(t, "u1", u.ID)
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := repo.GetUser(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = repo.GetUserByUsername(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("UpdateKeepsCreatedAt", func(t *testing.T) {
		before, err := repo.GetUser(ctx, "u2")
		require.NoError(t, err)

		require.NoError(t, repo.SaveUser(ctx, &domain.User{ID: "u2", Username: "trever", Name: "Trever Smith"}))

		after, err := repo.GetUser(ctx, "u2")
		require.NoError(t, err)
		assert.Equal(t, "Trever Smith", after.Name)
		assert.Equal(t, before.CreatedAt, after.CreatedAt)
	})

	t.Run("DuplicateUsername", func(t *testing.T) {
		err := repo.SaveUser(ctx, &domain.User{ID: "u3", Username: "daisy"})
		assert.ErrorIs(t, err, ErrAlreadyExists)
	})

	t.Run("InvalidInput", func(t *testing.T) {
		assert.ErrorIs(t, repo.SaveUser(ctx, nil), ErrInvalidInput)
		assert.ErrorIs(t, repo.SaveUser(ctx, &domain.User{Username: "x"}), ErrInvalidInput)
	})

	t.Run("ReturnedUsersAreCopies", func(t *testing.T) {
		u, err := repo.GetUser(ctx, "u1")
		require.NoError(t, err)
		u.Username = "mallory"

		again, err := repo.GetUser(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "daisy", again.Username)
	})

	assert.NoError(t, repo.Ping(ctx))
}

func TestMemoryDataRepository(t *testing.T) {
	repo := NewMemoryDataRepository()
	ctx := context.Background()

	first, err := repo.Create(ctx, "workorders", map[string]any{"title": "Fix boiler"})
	require.NoError(t, err)
	assert.NotEmpty(t, first.GUID)
	assert.Equal(t, "workorders", first.Collection)

	second, err := repo.Create(ctx, "workorders", map[string]any{"title": "Replace pump"})
	require.NoError(t, err)

	_, err = repo.Create(ctx, "", nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	t.Run("List", func(t *testing.T) {
		records, err := repo.List(ctx, "workorders")
		require.NoError(t, err)
		require.Len(t, records, 2)
		guids := []string{records[0].GUID, records[1].GUID}
		assert.ElementsMatch(t, []string{first.GUID, second.GUID}, guids)

		empty, err := repo.List(ctx, "results")
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("GetAndUpdate", func(t *testing.T) {
		got, err := repo.Get(ctx, "workorders", first.GUID)
		require.NoError(t, err)
		assert.Equal(t, "Fix boiler", got.Fields["title"])

		updated, err := repo.Update(ctx, "workorders", first.GUID, map[string]any{"title": "Fix boiler", "status": "done"})
		require.NoError(t, err)
		assert.Equal(t, "done", updated.Fields["status"])
		assert.False(t, updated.UpdatedAt.Before(updated.CreatedAt))

		_, err = repo.Update(ctx, "workorders", "missing", nil)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("CollectionsAreIsolated", func(t *testing.T) {
		_, err := repo.Get(ctx, "results", first.GUID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, "workorders", second.GUID))
		_, err := repo.Get(ctx, "workorders", second.GUID)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, repo.Delete(ctx, "workorders", second.GUID), ErrNotFound)
	})

	t.Run("FieldsAreCopied", func(t *testing.T) {
		fields := map[string]any{"title": "original"}
		rec, err := repo.Create(ctx, "notes", fields)
		require.NoError(t, err)
		fields["title"] = "changed"

		got, err := repo.Get(ctx, "notes", rec.GUID)
		require.NoError(t, err)
		assert.Equal(t, "original", got.Fields["title"])
	})
}

func TestDBConfig_DSN(t *testing.T) {
	cfg := DBConfig{Host: "db", Port: 5433, User: "wfm", Password: "pw", Name: "wfm", SSLMode: "require"}
	assert.Equal(t, "host=db port=5433 user=wfm password=pw dbname=wfm sslmode=require", cfg.DSN())
}
