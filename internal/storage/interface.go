package storage

import (
	"context"

	"github.com/UkralStul/discussion-forum/internal/domain"
)

// Storage определяет контракт для хранилищ.
//
// Поиск по id возвращает domain.ErrNotFound, нарушение уникальности username -
// domain.ErrConflict, любые сбои бэкенда оборачивают domain.ErrPersistence.
type Storage interface {
	CreateUser(ctx context.Context, user *domain.User) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)

	CreatePost(ctx context.Context, post *domain.Post) (*domain.Post, error)
	GetPostByID(ctx context.Context, id string) (*domain.Post, error)
	// GetPosts возвращает все посты, новые первыми.
	GetPosts(ctx context.Context) ([]*domain.Post, error)
	// SearchPosts ищет подстроку в заголовке без учета регистра.
	SearchPosts(ctx context.Context, query string) ([]*domain.Post, error)

	CreateReply(ctx context.Context, reply *domain.Reply) (*domain.Reply, error)
	GetReplyByID(ctx context.Context, id string) (*domain.Reply, error)
	// GetRepliesByPostID возвращает ответы в порядке создания.
	GetRepliesByPostID(ctx context.Context, postID string) ([]*domain.Reply, error)

	// IncrementCounter атомарно прибавляет delta к счетчику поста или ответа
	// и возвращает счетчики после обновления.
	IncrementCounter(ctx context.Context, target domain.TargetType, id string, field domain.CounterField, delta int64) (domain.Counters, error)

	UserBatcher
}

// UserBatcher - метод для Dataloader'ов: пользователи по списку id одним запросом.
// Ненайденные id в карту не попадают.
type UserBatcher interface {
	GetUsersByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error)
}
