package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/UkralStul/discussion-forum/internal/domain"
	"github.com/google/uuid"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Store реализует интерфейс Storage с использованием PostgreSQL.
type Store struct {
	db *gorm.DB
}

// New создает новый экземпляр хранилища PostgreSQL.
func New(dsn string, level logger.LogLevel) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(level),
		// gorm.ErrDuplicatedKey вместо кода ошибки драйвера
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Выполняем миграцию схемы
	if err := db.AutoMigrate(&domain.User{}, &domain.Post{}, &domain.Reply{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close закрывает пул соединений.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// === User Methods ===

func (s *Store) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	u := *user
	u.ID = ""
	if err := s.db.WithContext(ctx).Create(&u).Error; err != nil {
		return nil, translate(err, "create user")
	}
	// GORM автоматически заполнит ID и CreatedAt после создания
	return &u, nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	if !validID(id) {
		return nil, fmt.Errorf("user with id %s: %w", id, domain.ErrNotFound)
	}
	var user domain.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, translate(err, "get user "+id)
	}
	return &user, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	var user domain.User
	if err := s.db.WithContext(ctx).First(&user, "username = ?", username).Error; err != nil {
		return nil, translate(err, "get user by username")
	}
	return &user, nil
}

// === Post Methods ===

func (s *Store) CreatePost(ctx context.Context, post *domain.Post) (*domain.Post, error) {
	p := *post
	p.ID = ""
	p.Likes, p.Dislikes = 0, 0
	if err := s.db.WithContext(ctx).Create(&p).Error; err != nil {
		return nil, translate(err, "create post")
	}
	return &p, nil
}

func (s *Store) GetPostByID(ctx context.Context, id string) (*domain.Post, error) {
	if !validID(id) {
		return nil, fmt.Errorf("post with id %s: %w", id, domain.ErrNotFound)
	}
	var post domain.Post
	if err := s.db.WithContext(ctx).First(&post, "id = ?", id).Error; err != nil {
		// GORM возвращает gorm.ErrRecordNotFound, если запись не найдена
		return nil, translate(err, "get post "+id)
	}
	return &post, nil
}

func (s *Store) GetPosts(ctx context.Context) ([]*domain.Post, error) {
	var posts []*domain.Post
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&posts).Error; err != nil {
		return nil, translate(err, "list posts")
	}
	return posts, nil
}

func (s *Store) SearchPosts(ctx context.Context, query string) ([]*domain.Post, error) {
	var posts []*domain.Post
	err := s.db.WithContext(ctx).
		Where("title ILIKE ?", "%"+escapeLike(query)+"%").
		Order("created_at DESC").
		Find(&posts).Error
	if err != nil {
		return nil, translate(err, "search posts")
	}
	return posts, nil
}

// === Reply Methods ===

func (s *Store) CreateReply(ctx context.Context, reply *domain.Reply) (*domain.Reply, error) {
	if !validID(reply.PostID) {
		return nil, fmt.Errorf("post with id %s: %w", reply.PostID, domain.ErrNotFound)
	}
	r := *reply
	r.ID = ""
	r.Likes, r.Dislikes = 0, 0

	// Проверяем существование поста и создаем ответ в одной транзакции
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.Post{}).Where("id = ?", r.PostID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Create(&r).Error
	})
	if err != nil {
		return nil, translate(err, "create reply for post "+reply.PostID)
	}
	return &r, nil
}

func (s *Store) GetReplyByID(ctx context.Context, id string) (*domain.Reply, error) {
	if !validID(id) {
		return nil, fmt.Errorf("reply with id %s: %w", id, domain.ErrNotFound)
	}
	var reply domain.Reply
	if err := s.db.WithContext(ctx).First(&reply, "id = ?", id).Error; err != nil {
		return nil, translate(err, "get reply "+id)
	}
	return &reply, nil
}

func (s *Store) GetRepliesByPostID(ctx context.Context, postID string) ([]*domain.Reply, error) {
	replies := []*domain.Reply{}
	if !validID(postID) {
		return replies, nil
	}
	err := s.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("created_at ASC").
		Find(&replies).Error
	if err != nil {
		return nil, translate(err, "list replies")
	}
	return replies, nil
}

// === Counter Methods ===

// IncrementCounter делает один UPDATE ... SET x = x + delta RETURNING, сериализация
// конкурентных инкрементов остается на стороне PostgreSQL.
func (s *Store) IncrementCounter(ctx context.Context, target domain.TargetType, id string, field domain.CounterField, delta int64) (domain.Counters, error) {
	var model any
	switch target {
	case domain.TargetPost:
		model = &domain.Post{}
	case domain.TargetReply:
		model = &domain.Reply{}
	default:
		return domain.Counters{}, fmt.Errorf("unknown target %q: %w", target, domain.ErrValidation)
	}
	if field != domain.FieldLikes && field != domain.FieldDislikes {
		return domain.Counters{}, fmt.Errorf("unknown counter %q: %w", field, domain.ErrValidation)
	}
	if !validID(id) {
		return domain.Counters{}, fmt.Errorf("%s with id %s: %w", target, id, domain.ErrNotFound)
	}

	col := string(field)
	res := s.db.WithContext(ctx).
		Model(model).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "likes"}, {Name: "dislikes"}}}).
		Where("id = ?", id).
		UpdateColumn(col, gorm.Expr(col+" + ?", delta))
	if res.Error != nil {
		return domain.Counters{}, translate(res.Error, fmt.Sprintf("increment %s %s", target, id))
	}
	if res.RowsAffected == 0 {
		return domain.Counters{}, fmt.Errorf("%s with id %s: %w", target, id, domain.ErrNotFound)
	}

	counters := domain.Counters{TargetType: target, TargetID: id}
	switch m := model.(type) {
	case *domain.Post:
		counters.Likes, counters.Dislikes = m.Likes, m.Dislikes
	case *domain.Reply:
		counters.Likes, counters.Dislikes = m.Likes, m.Dislikes
	}
	return counters, nil
}

// === Dataloader Method ===

func (s *Store) GetUsersByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if validID(id) {
			valid = append(valid, id)
		}
	}
	result := make(map[string]*domain.User, len(valid))
	if len(valid) == 0 {
		return result, nil
	}

	// Загружаем всех пользователей одним запросом
	var users []*domain.User
	if err := s.db.WithContext(ctx).Where("id IN ?", valid).Find(&users).Error; err != nil {
		return nil, translate(err, "load users")
	}
	for _, u := range users {
		result[u.ID] = u
	}
	return result, nil
}

func translate(err error, op string) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", op, domain.ErrConflict)
	default:
		return fmt.Errorf("%w: %s: %w", domain.ErrPersistence, op, err)
	}
}

// validID отсекает строки, на которых колонка uuid упала бы с ошибкой синтаксиса.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
