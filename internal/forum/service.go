package forum

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/UkralStul/discussion-forum/internal/auth"
	"github.com/UkralStul/discussion-forum/internal/domain"
	"github.com/UkralStul/discussion-forum/internal/live"
	"github.com/UkralStul/discussion-forum/internal/reaction"
	"github.com/UkralStul/discussion-forum/internal/storage"
)

const (
	maxUsernameLen = 64
	maxTitleLen    = 255
)

// Service собирает регистрацию, логин, посты, ответы, поиск и реакции.
type Service struct {
	store    storage.Storage
	hasher   *auth.Hasher
	tokens   *auth.TokenService
	ledger   *reaction.Ledger
	observer *live.Observer
}

// NewService создает сервис. observer может быть nil, тогда события не публикуются.
func NewService(store storage.Storage, hasher *auth.Hasher, tokens *auth.TokenService, ledger *reaction.Ledger, observer *live.Observer) *Service {
	return &Service{
		store:    store,
		hasher:   hasher,
		tokens:   tokens,
		ledger:   ledger,
		observer: observer,
	}
}

// Register создает пользователя. Занятый username - domain.ErrConflict, прежняя запись не меняется.
func (s *Service) Register(ctx context.Context, username, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("username is required: %w", domain.ErrValidation)
	}
	if utf8.RuneCountInString(username) > maxUsernameLen {
		return nil, fmt.Errorf("username longer than %d characters: %w", maxUsernameLen, domain.ErrValidation)
	}
	if password == "" {
		return nil, fmt.Errorf("password is required: %w", domain.ErrValidation)
	}

	// Явная проверка до записи. Хранилище все равно проверит уникальность еще раз,
	// это закрывает гонку двух одновременных регистраций.
	_, err := s.store.GetUserByUsername(ctx, username)
	switch {
	case err == nil:
		return nil, fmt.Errorf("username %q is taken: %w", username, domain.ErrConflict)
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	digest, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	return s.store.CreateUser(ctx, &domain.User{Username: username, PasswordHash: digest})
}

// Login проверяет пароль и выпускает токен. Неизвестный пользователь и неверный пароль
// неразличимы: одна ошибка и одинаковая стоимость bcrypt.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", fmt.Errorf("username and password are required: %w", domain.ErrValidation)
	}

	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.hasher.DummyVerify(password)
			return "", fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
		}
		return "", err
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return "", fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	}
	return s.tokens.Issue(user.ID)
}

// CreatePost создает пост от имени identity. Автор никогда не берется из запроса клиента.
func (s *Service) CreatePost(ctx context.Context, identity domain.Identity, title, body string) (*domain.Post, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("title is required: %w", domain.ErrValidation)
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		return nil, fmt.Errorf("title longer than %d characters: %w", maxTitleLen, domain.ErrValidation)
	}
	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("body is required: %w", domain.ErrValidation)
	}
	if err := s.requireAuthor(ctx, identity); err != nil {
		return nil, err
	}
	return s.store.CreatePost(ctx, &domain.Post{
		Title:  title,
		Body:   body,
		UserID: identity.UserID,
	})
}

func (s *Service) GetPost(ctx context.Context, id string) (*domain.Post, error) {
	return s.store.GetPostByID(ctx, id)
}

func (s *Service) ListPosts(ctx context.Context) ([]*domain.Post, error) {
	return s.store.GetPosts(ctx)
}

// SearchPosts ищет подстроку в заголовке без учета регистра.
func (s *Service) SearchPosts(ctx context.Context, query string) ([]*domain.Post, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search query is required: %w", domain.ErrValidation)
	}
	return s.store.SearchPosts(ctx, query)
}

// CreateReply создает ответ на существующий пост.
func (s *Service) CreateReply(ctx context.Context, identity domain.Identity, postID, body string) (*domain.Reply, error) {
	if postID == "" {
		return nil, fmt.Errorf("post id is required: %w", domain.ErrValidation)
	}
	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("reply body is required: %w", domain.ErrValidation)
	}
	if err := s.requireAuthor(ctx, identity); err != nil {
		return nil, err
	}
	if _, err := s.store.GetPostByID(ctx, postID); err != nil {
		return nil, err
	}

	reply, err := s.store.CreateReply(ctx, &domain.Reply{
		PostID: postID,
		UserID: identity.UserID,
		Body:   body,
	})
	if err != nil {
		return nil, err
	}

	if s.observer != nil {
		s.observer.Publish(live.Event{Type: live.EventReplyCreated, PostID: postID, Reply: reply})
	}
	return reply, nil
}

// requireAuthor проверяет, что пользователь из токена существует. Токен пережил
// своего пользователя (сброс хранилища) - это ErrInvalidToken, как и любой другой негодный токен.
func (s *Service) requireAuthor(ctx context.Context, identity domain.Identity) error {
	if identity.UserID == "" {
		return domain.ErrMissingToken
	}
	if _, err := s.store.GetUserByID(ctx, identity.UserID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Printf("forum: token subject %s has no user", identity.UserID)
			return domain.ErrInvalidToken
		}
		return err
	}
	return nil
}

func (s *Service) GetReply(ctx context.Context, id string) (*domain.Reply, error) {
	return s.store.GetReplyByID(ctx, id)
}

// ListReplies возвращает ответы существующего поста.
func (s *Service) ListReplies(ctx context.Context, postID string) ([]*domain.Reply, error) {
	if _, err := s.store.GetPostByID(ctx, postID); err != nil {
		return nil, err
	}
	return s.store.GetRepliesByPostID(ctx, postID)
}

// React применяет реакцию через Ledger и оповещает подписчиков поста.
func (s *Service) React(ctx context.Context, target domain.TargetType, id string, kind domain.ReactionKind) (domain.Counters, error) {
	counters, err := s.ledger.Apply(ctx, target, id, kind)
	if err != nil {
		return domain.Counters{}, err
	}
	s.publishCounters(ctx, counters)
	return counters, nil
}

func (s *Service) publishCounters(ctx context.Context, counters domain.Counters) {
	if s.observer == nil {
		return
	}
	postID := counters.TargetID
	if counters.TargetType == domain.TargetReply {
		reply, err := s.store.GetReplyByID(ctx, counters.TargetID)
		if err != nil {
			log.Printf("forum: resolve post of reply %s: %v", counters.TargetID, err)
			return
		}
		postID = reply.PostID
	}
	s.observer.Publish(live.Event{Type: live.EventCountersUpdated, PostID: postID, Counters: &counters})
}
