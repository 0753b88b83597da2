package postgres

import (
	"os"
	"testing"

	"github.com/UkralStul/discussion-forum/internal/storage"
	"github.com/UkralStul/discussion-forum/internal/storage/storagetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

// Тесты идут против настоящей базы, например:
// FORUM_TEST_DATABASE_URL="host=localhost user=postgres password=postgres dbname=forum_test sslmode=disable"
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("FORUM_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("FORUM_TEST_DATABASE_URL is not set")
	}
	store, err := New(dsn, logger.Silent)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Storage { return newTestStore(t) })
}

func TestValidID(t *testing.T) {
	assert.True(t, validID("3f1c8a52-8d1e-4c7e-9a0b-2f7d7e6c1a90"))
	assert.False(t, validID("non-existent-id"))
	assert.False(t, validID(""))
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\%`, escapeLike("100%"))
	assert.Equal(t, `a\_b`, escapeLike("a_b"))
	assert.Equal(t, `c:\\dir`, escapeLike(`c:\dir`))
}
