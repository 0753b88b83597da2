package inmemory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/UkralStul/discussion-forum/internal/domain"
	"github.com/google/uuid"
)

// Store реализует интерфейс Storage в памяти.
//
// Все методы отдают копии записей, поэтому инкременты счетчиков под s.mu
// не пересекаются с чтением у вызывающих.
type Store struct {
	mu            sync.RWMutex
	users         map[string]*domain.User
	usersByName   map[string]string // map[username]userID
	posts         map[string]*domain.Post
	replies       map[string]*domain.Reply
	repliesByPost map[string][]string // map[postID][]replyID
}

// New создает новый экземпляр in-memory хранилища.
func New() *Store {
	return &Store{
		users:         make(map[string]*domain.User),
		usersByName:   make(map[string]string),
		posts:         make(map[string]*domain.Post),
		replies:       make(map[string]*domain.Reply),
		repliesByPost: make(map[string][]string),
	}
}

// === User Methods ===

func (s *Store) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.usersByName[user.Username]; taken {
		return nil, fmt.Errorf("username %q: %w", user.Username, domain.ErrConflict)
	}

	u := *user
	u.ID = uuid.NewString()
	u.CreatedAt = time.Now().UTC()
	s.users[u.ID] = &u
	s.usersByName[u.Username] = u.ID

	out := u
	return &out, nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user with id %s: %w", id, domain.ErrNotFound)
	}
	out := *u
	return &out, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByName[username]
	if !ok {
		return nil, fmt.Errorf("user %q: %w", username, domain.ErrNotFound)
	}
	out := *s.users[id]
	return &out, nil
}

// === Post Methods ===

func (s *Store) CreatePost(ctx context.Context, post *domain.Post) (*domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := *post
	p.ID = uuid.NewString()
	p.CreatedAt = time.Now().UTC()
	p.Likes, p.Dislikes = 0, 0
	s.posts[p.ID] = &p

	out := p
	return &out, nil
}

func (s *Store) GetPostByID(ctx context.Context, id string) (*domain.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	post, ok := s.posts[id]
	if !ok {
		return nil, fmt.Errorf("post with id %s: %w", id, domain.ErrNotFound)
	}
	out := *post
	return &out, nil
}

func (s *Store) GetPosts(ctx context.Context) ([]*domain.Post, error) {
	return s.filterPosts(func(*domain.Post) bool { return true }), nil
}

func (s *Store) SearchPosts(ctx context.Context, query string) ([]*domain.Post, error) {
	q := strings.ToLower(query)
	return s.filterPosts(func(p *domain.Post) bool {
		return strings.Contains(strings.ToLower(p.Title), q)
	}), nil
}

// filterPosts - вспомогательная функция, отдает копии постов, новые первыми
func (s *Store) filterPosts(match func(*domain.Post) bool) []*domain.Post {
	s.mu.RLock()
	defer s.mu.RUnlock()

	posts := make([]*domain.Post, 0, len(s.posts))
	for _, p := range s.posts {
		if match(p) {
			cp := *p
			posts = append(posts, &cp)
		}
	}

	sort.Slice(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
	return posts
}

// === Reply Methods ===

func (s *Store) CreateReply(ctx context.Context, reply *domain.Reply) (*domain.Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Проверка поста
	if _, ok := s.posts[reply.PostID]; !ok {
		return nil, fmt.Errorf("post with id %s: %w", reply.PostID, domain.ErrNotFound)
	}

	r := *reply
	r.ID = uuid.NewString()
	r.CreatedAt = time.Now().UTC()
	r.Likes, r.Dislikes = 0, 0
	s.replies[r.ID] = &r
	s.repliesByPost[r.PostID] = append(s.repliesByPost[r.PostID], r.ID)

	out := r
	return &out, nil
}

func (s *Store) GetReplyByID(ctx context.Context, id string) (*domain.Reply, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reply, ok := s.replies[id]
	if !ok {
		return nil, fmt.Errorf("reply with id %s: %w", id, domain.ErrNotFound)
	}
	out := *reply
	return &out, nil
}

func (s *Store) GetRepliesByPostID(ctx context.Context, postID string) ([]*domain.Reply, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.repliesByPost[postID]
	replies := make([]*domain.Reply, 0, len(ids))
	for _, id := range ids {
		if r, ok := s.replies[id]; ok {
			cp := *r
			replies = append(replies, &cp)
		}
	}
	// Сортируем по времени создания, порядок вставки может совпасть по времени
	sort.SliceStable(replies, func(i, j int) bool {
		return replies[i].CreatedAt.Before(replies[j].CreatedAt)
	})
	return replies, nil
}

// === Counter Methods ===

// IncrementCounter выполняет чтение и запись под одной блокировкой хранилища,
// поэтому конкурентные инкременты одной записи не теряются.
func (s *Store) IncrementCounter(ctx context.Context, target domain.TargetType, id string, field domain.CounterField, delta int64) (domain.Counters, error) {
	if err := ctx.Err(); err != nil {
		return domain.Counters{}, fmt.Errorf("%w: increment %s %s: %w", domain.ErrPersistence, target, id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var likes, dislikes *int64
	switch target {
	case domain.TargetPost:
		p, ok := s.posts[id]
		if !ok {
			return domain.Counters{}, fmt.Errorf("post with id %s: %w", id, domain.ErrNotFound)
		}
		likes, dislikes = &p.Likes, &p.Dislikes
	case domain.TargetReply:
		r, ok := s.replies[id]
		if !ok {
			return domain.Counters{}, fmt.Errorf("reply with id %s: %w", id, domain.ErrNotFound)
		}
		likes, dislikes = &r.Likes, &r.Dislikes
	default:
		return domain.Counters{}, fmt.Errorf("unknown target %q: %w", target, domain.ErrValidation)
	}

	switch field {
	case domain.FieldLikes:
		*likes += delta
	case domain.FieldDislikes:
		*dislikes += delta
	default:
		return domain.Counters{}, fmt.Errorf("unknown counter %q: %w", field, domain.ErrValidation)
	}

	return domain.Counters{TargetType: target, TargetID: id, Likes: *likes, Dislikes: *dislikes}, nil
}

// === Dataloader Methods ===

func (s *Store) GetUsersByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make(map[string]*domain.User, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			cp := *u
			results[id] = &cp
		}
	}
	return results, nil
}
