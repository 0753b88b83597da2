// Package storagetest - общий набор проверок для реализаций storage.Storage.
// Каждый бэкенд вызывает Run из своего _test.go.
package storagetest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/UkralStul/discussion-forum/internal/domain"
	"github.com/UkralStul/discussion-forum/internal/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run прогоняет все проверки. newStore вызывается для каждого подтеста;
// хранилище может быть общим между подтестами, поэтому данные каждого
// подтеста помечены уникальным суффиксом.
func Run(t *testing.T, newStore func(t *testing.T) storage.Storage) {
	t.Run("Users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("Posts", func(t *testing.T) { testPosts(t, newStore(t)) })
	t.Run("Search", func(t *testing.T) { testSearch(t, newStore(t)) })
	t.Run("Replies", func(t *testing.T) { testReplies(t, newStore(t)) })
	t.Run("IncrementCounter", func(t *testing.T) { testIncrement(t, newStore(t)) })
	t.Run("ConcurrentIncrements", func(t *testing.T) { testConcurrentIncrements(t, newStore(t)) })
	t.Run("GetUsersByIDs", func(t *testing.T) { testUsersByIDs(t, newStore(t)) })
}

func unique(prefix string) string {
	return prefix + "-" + uuid.NewString()[:8]
}

// NewUser создает пользователя с уникальным именем.
func NewUser(t *testing.T, store storage.Storage) *domain.User {
	t.Helper()
	user, err := store.CreateUser(context.Background(), &domain.User{
		Username:     unique("user"),
		PasswordHash: "digest",
	})
	require.NoError(t, err)
	return user
}

// NewPost создает пост от имени нового пользователя.
func NewPost(t *testing.T, store storage.Storage, title string) *domain.Post {
	t.Helper()
	author := NewUser(t, store)
	post, err := store.CreatePost(context.Background(), &domain.Post{Title: title, Body: "Content", UserID: author.ID})
	require.NoError(t, err)
	return post
}

func testUsers(t *testing.T, store storage.Storage) {
	ctx := context.Background()
	name := unique("alice")

	user, err := store.CreateUser(ctx, &domain.User{Username: name, PasswordHash: "digest"})
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.False(t, user.CreatedAt.IsZero())

	byID, err := store.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, name, byID.Username)
	assert.Equal(t, "digest", byID.PasswordHash)

	byName, err := store.GetUserByUsername(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, user.ID, byName.ID)

	// Повторное имя отклоняется, прежняя запись не меняется
	_, err = store.CreateUser(ctx, &domain.User{Username: name, PasswordHash: "other"})
	assert.ErrorIs(t, err, domain.ErrConflict)
	again, err := store.GetUserByUsername(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, "digest", again.PasswordHash)

	_, err = store.GetUserByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = store.GetUserByUsername(ctx, unique("nobody"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testPosts(t *testing.T, store storage.Storage) {
	ctx := context.Background()
	author := NewUser(t, store)

	first, err := store.CreatePost(ctx, &domain.Post{Title: "First", Body: "one", UserID: author.ID, Likes: 7})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.Zero(t, first.Likes, "new posts start with zero counters")
	assert.Zero(t, first.Dislikes)

	time.Sleep(5 * time.Millisecond)
	second, err := store.CreatePost(ctx, &domain.Post{Title: "Second", Body: "two", UserID: author.ID})
	require.NoError(t, err)

	got, err := store.GetPostByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "First", got.Title)
	assert.Equal(t, "one", got.Body)
	assert.Equal(t, author.ID, got.UserID)

	_, err = store.GetPostByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	posts, err := store.GetPosts(ctx)
	require.NoError(t, err)
	firstIdx, secondIdx := indexOf(posts, first.ID), indexOf(posts, second.ID)
	require.NotEqual(t, -1, firstIdx)
	require.NotEqual(t, -1, secondIdx)
	assert.Less(t, secondIdx, firstIdx, "newest post comes first")
}

func testSearch(t *testing.T, store storage.Storage) {
	ctx := context.Background()
	tag := strings.ToLower(uuid.NewString()[:8])

	match := NewPost(t, store, "Learning GOLANG "+tag)
	NewPost(t, store, "Rust notes "+tag)
	percent := NewPost(t, store, "100% "+tag)

	found, err := store.SearchPosts(ctx, "golang "+strings.ToUpper(tag))
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, match.ID, found[0].ID)

	// Спецсимволы LIKE ищутся буквально
	found, err = store.SearchPosts(ctx, "% "+tag)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, percent.ID, found[0].ID)

	found, err = store.SearchPosts(ctx, "no such title "+tag)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func testReplies(t *testing.T, store storage.Storage) {
	ctx := context.Background()
	post := NewPost(t, store, "Thread")
	author := NewUser(t, store)

	first, err := store.CreateReply(ctx, &domain.Reply{PostID: post.ID, UserID: author.ID, Body: "First reply!"})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.Zero(t, first.Likes)

	time.Sleep(5 * time.Millisecond)
	second, err := store.CreateReply(ctx, &domain.Reply{PostID: post.ID, UserID: author.ID, Body: "Second reply"})
	require.NoError(t, err)

	got, err := store.GetReplyByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, post.ID, got.PostID)
	assert.Equal(t, "First reply!", got.Body)

	replies, err := store.GetRepliesByPostID(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, replies, 2)
	assert.Equal(t, first.ID, replies[0].ID, "replies are oldest first")
	assert.Equal(t, second.ID, replies[1].ID)

	_, err = store.CreateReply(ctx, &domain.Reply{PostID: uuid.NewString(), UserID: author.ID, Body: "orphan"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = store.GetReplyByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testIncrement(t *testing.T, store storage.Storage) {
	ctx := context.Background()
	post := NewPost(t, store, "Counters")
	author := NewUser(t, store)
	reply, err := store.CreateReply(ctx, &domain.Reply{PostID: post.ID, UserID: author.ID, Body: "hi"})
	require.NoError(t, err)

	counters, err := store.IncrementCounter(ctx, domain.TargetPost, post.ID, domain.FieldLikes, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.Counters{TargetType: domain.TargetPost, TargetID: post.ID, Likes: 1}, counters)

	counters, err = store.IncrementCounter(ctx, domain.TargetPost, post.ID, domain.FieldDislikes, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counters.Likes)
	assert.Equal(t, int64(1), counters.Dislikes)

	counters, err = store.IncrementCounter(ctx, domain.TargetReply, reply.ID, domain.FieldLikes, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counters.Likes)
	assert.Equal(t, domain.TargetReply, counters.TargetType)

	stored, err := store.GetPostByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Likes)
	assert.Equal(t, int64(1), stored.Dislikes)

	_, err = store.IncrementCounter(ctx, domain.TargetPost, uuid.NewString(), domain.FieldLikes, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = store.IncrementCounter(ctx, domain.TargetReply, uuid.NewString(), domain.FieldLikes, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = store.IncrementCounter(ctx, domain.TargetType("comment"), post.ID, domain.FieldLikes, 1)
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = store.IncrementCounter(ctx, domain.TargetPost, post.ID, domain.CounterField("views"), 1)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func testConcurrentIncrements(t *testing.T, store storage.Storage) {
	ctx := context.Background()
	post := NewPost(t, store, "Popular")

	const n = 50
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.IncrementCounter(ctx, domain.TargetPost, post.ID, domain.FieldLikes, 1); err != nil {
				errs <- fmt.Errorf("increment: %w", err)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	stored, err := store.GetPostByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(n), stored.Likes)
	assert.Zero(t, stored.Dislikes)
}

func testUsersByIDs(t *testing.T, store storage.Storage) {
	ctx := context.Background()
	alice := NewUser(t, store)
	bob := NewUser(t, store)
	missing := uuid.NewString()

	users, err := store.GetUsersByIDs(ctx, []string{alice.ID, bob.ID, missing})
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, alice.Username, users[alice.ID].Username)
	assert.Equal(t, bob.Username, users[bob.ID].Username)
	assert.NotContains(t, users, missing)

	empty, err := store.GetUsersByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func indexOf(posts []*domain.Post, id string) int {
	for i, p := range posts {
		if p.ID == id {
			return i
		}
	}
	return -1
}
