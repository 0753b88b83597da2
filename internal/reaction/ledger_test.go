package reaction

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/UkralStul/discussion-forum/internal/domain"
	"github.com/UkralStul/discussion-forum/internal/storage/inmemory"
	"github.com/UkralStul/discussion-forum/internal/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingIncrementer запоминает вызовы и отдает заданную ошибку.
type recordingIncrementer struct {
	mu    sync.Mutex
	calls []domain.CounterField
	err   error
}

func (r *recordingIncrementer) IncrementCounter(ctx context.Context, target domain.TargetType, id string, field domain.CounterField, delta int64) (domain.Counters, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, field)
	if r.err != nil {
		return domain.Counters{}, r.err
	}
	return domain.Counters{TargetType: target, TargetID: id, Likes: delta}, nil
}

func TestLedger_Apply(t *testing.T) {
	store := inmemory.New()
	post := storagetest.NewPost(t, store, "Hello")
	ledger := NewLedger(store)
	ctx := context.Background()

	counters, err := ledger.Apply(ctx, domain.TargetPost, post.ID, domain.ReactionLike)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counters.Likes)
	assert.Zero(t, counters.Dislikes)

	counters, err = ledger.Apply(ctx, domain.TargetPost, post.ID, domain.ReactionDislike)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counters.Likes)
	assert.Equal(t, int64(1), counters.Dislikes)
}

func TestLedger_ConcurrentLikesAreNotLost(t *testing.T) {
	store := inmemory.New()
	post := storagetest.NewPost(t, store, "Hello")
	ledger := NewLedger(store)

	const n = 100
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		kind := domain.ReactionLike
		if i%2 == 1 {
			kind = domain.ReactionDislike
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.Apply(context.Background(), domain.TargetPost, post.ID, kind)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stored, err := store.GetPostByID(context.Background(), post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(n/2), stored.Likes)
	assert.Equal(t, int64(n/2), stored.Dislikes)
}

func TestLedger_ReplyTarget(t *testing.T) {
	store := inmemory.New()
	post := storagetest.NewPost(t, store, "Hello")
	reply, err := store.CreateReply(context.Background(), &domain.Reply{PostID: post.ID, UserID: post.UserID, Body: "hi"})
	require.NoError(t, err)

	counters, err := NewLedger(store).Apply(context.Background(), domain.TargetReply, reply.ID, domain.ReactionDislike)
	require.NoError(t, err)
	assert.Equal(t, domain.TargetReply, counters.TargetType)
	assert.Equal(t, int64(1), counters.Dislikes)

	// Счетчики поста не тронуты
	stored, err := store.GetPostByID(context.Background(), post.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.Dislikes)
}

func TestLedger_NotFound(t *testing.T) {
	ledger := NewLedger(inmemory.New())

	_, err := ledger.Apply(context.Background(), domain.TargetPost, "missing", domain.ReactionLike)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = ledger.Apply(context.Background(), domain.TargetReply, "missing", domain.ReactionDislike)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLedger_Validation(t *testing.T) {
	rec := &recordingIncrementer{}
	ledger := NewLedger(rec)
	ctx := context.Background()

	_, err := ledger.Apply(ctx, domain.TargetType("comment"), "id", domain.ReactionLike)
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = ledger.Apply(ctx, domain.TargetPost, "id", domain.ReactionKind("love"))
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = ledger.Apply(ctx, domain.TargetPost, "", domain.ReactionLike)
	assert.ErrorIs(t, err, domain.ErrValidation)

	// До хранилища дело не дошло
	assert.Empty(t, rec.calls)
}

func TestLedger_KindSelectsField(t *testing.T) {
	rec := &recordingIncrementer{}
	ledger := NewLedger(rec)

	_, err := ledger.Apply(context.Background(), domain.TargetPost, "id", domain.ReactionLike)
	require.NoError(t, err)
	_, err = ledger.Apply(context.Background(), domain.TargetReply, "id", domain.ReactionDislike)
	require.NoError(t, err)

	assert.Equal(t, []domain.CounterField{domain.FieldLikes, domain.FieldDislikes}, rec.calls)
}

func TestLedger_StorageFailure(t *testing.T) {
	ctx := context.Background()

	// Ошибка без категории считается сбоем хранилища
	ledger := NewLedger(&recordingIncrementer{err: errors.New("connection reset")})
	_, err := ledger.Apply(ctx, domain.TargetPost, "id", domain.ReactionLike)
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.ErrorContains(t, err, "connection reset")

	ledger = NewLedger(&recordingIncrementer{err: context.DeadlineExceeded})
	_, err = ledger.Apply(ctx, domain.TargetPost, "id", domain.ReactionLike)
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLedger_CanceledContext(t *testing.T) {
	store := inmemory.New()
	post := storagetest.NewPost(t, store, "Hello")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewLedger(store).Apply(ctx, domain.TargetPost, post.ID, domain.ReactionLike)
	assert.ErrorIs(t, err, domain.ErrPersistence)

	stored, err := store.GetPostByID(context.Background(), post.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.Likes)
}
