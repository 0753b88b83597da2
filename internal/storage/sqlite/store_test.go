package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/UkralStul/discussion-forum/internal/domain"
	"github.com/UkralStul/discussion-forum/internal/storage"
	"github.com/UkralStul/discussion-forum/internal/storage/storagetest"
	"github.com/google/uuid"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "forum.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Storage { return newTestStore(t) })
}

func TestStore_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "forum.db")

	store, err := New(path)
	require.NoError(t, err)
	post := storagetest.NewPost(t, store, "Persistent")
	_, err = store.IncrementCounter(ctx, domain.TargetPost, post.ID, domain.FieldDislikes, 1)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Схема применяется повторно без ошибок, данные на месте
	reopened, err := New(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetPostByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "Persistent", got.Title)
	assert.Equal(t, int64(1), got.Dislikes)
	assert.Equal(t, post.CreatedAt.Unix(), got.CreatedAt.Unix())
}

func TestStore_ClosedDatabaseIsPersistenceFailure(t *testing.T) {
	store, err := New(filepath.Join(t.TempDir(), "forum.db"))
	require.NoError(t, err)
	post := storagetest.NewPost(t, store, "Soon closed")
	require.NoError(t, store.Close())

	_, err = store.IncrementCounter(context.Background(), domain.TargetPost, post.ID, domain.FieldLikes, 1)
	assert.ErrorIs(t, err, domain.ErrPersistence)
}

func TestStore_UnknownReferencesAreNotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreatePost(ctx, &domain.Post{Title: "t", Body: "b", UserID: uuid.NewString()})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NotErrorIs(t, err, domain.ErrPersistence)

	post := storagetest.NewPost(t, store, "Thread")
	_, err = store.CreateReply(ctx, &domain.Reply{PostID: post.ID, UserID: uuid.NewString(), Body: "hi"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NotErrorIs(t, err, domain.ErrPersistence)
}
