package dataloader

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/UkralStul/discussion-forum/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingBatcher считает обращения к хранилищу.
type countingBatcher struct {
	mu    sync.Mutex
	calls int
	users map[string]*domain.User
	err   error
}

func (c *countingBatcher) GetUsersByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	out := make(map[string]*domain.User, len(ids))
	for _, id := range ids {
		if u, ok := c.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func TestLoaders_UsernamesBatchesIntoOneCall(t *testing.T) {
	batcher := &countingBatcher{users: map[string]*domain.User{
		"u1": {ID: "u1", Username: "alice"},
		"u2": {ID: "u2", Username: "bob"},
	}}
	loaders := NewLoaders(batcher)

	names, err := loaders.Usernames(context.Background(), []string{"u1", "u2", "u1", "ghost"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"u1": "alice", "u2": "bob"}, names)
	assert.Equal(t, 1, batcher.calls)

	// Повторная загрузка берется из кэша лоадера
	_, err = loaders.Usernames(context.Background(), []string{"u1"})
	require.NoError(t, err)
	assert.Equal(t, 1, batcher.calls)
}

func TestLoaders_StorageError(t *testing.T) {
	loaders := NewLoaders(&countingBatcher{err: errors.New("db down")})

	_, err := loaders.Usernames(context.Background(), []string{"u1"})
	assert.ErrorContains(t, err, "db down")
}

func TestMiddleware_InjectsFreshLoaders(t *testing.T) {
	batcher := &countingBatcher{}
	var seen []*Loaders
	handler := Middleware(batcher, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, For(r.Context()))
	}))

	for i := 0; i < 2; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	}
	require.Len(t, seen, 2)
	assert.NotNil(t, seen[0])
	assert.NotSame(t, seen[0], seen[1])

	assert.Nil(t, For(context.Background()))
}
