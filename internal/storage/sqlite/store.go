package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/UkralStul/discussion-forum/internal/domain"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var schema = []string{
	`PRAGMA foreign_keys = ON;`,
	`CREATE TABLE IF NOT EXISTS users(
		id TEXT PRIMARY KEY,
		username TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS posts(
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		body TEXT NOT NULL,
		user_id TEXT NOT NULL REFERENCES users(id),
		likes INTEGER NOT NULL DEFAULT 0 CHECK(likes >= 0),
		dislikes INTEGER NOT NULL DEFAULT 0 CHECK(dislikes >= 0),
		created_at DATETIME NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS replies(
		id TEXT PRIMARY KEY,
		post_id TEXT NOT NULL REFERENCES posts(id),
		user_id TEXT NOT NULL REFERENCES users(id),
		body TEXT NOT NULL,
		likes INTEGER NOT NULL DEFAULT 0 CHECK(likes >= 0),
		dislikes INTEGER NOT NULL DEFAULT 0 CHECK(dislikes >= 0),
		created_at DATETIME NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_replies_post ON replies(post_id);`,
}

// Store реализует интерфейс Storage поверх файла SQLite.
type Store struct {
	db *sqlx.DB
}

// New открывает (или создает) базу по пути path и применяет схему.
func New(path string) (*Store, error) {
	dsn := "file:" + path + "?_time_format=sqlite&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// Одно соединение: PRAGMA foreign_keys действует на соединение, а запись в SQLite все равно одна
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to sqlite: %w", err)
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to migrate sqlite: %w", err)
		}
	}
	return &Store{db: db}, nil
}

// Close закрывает базу.
func (s *Store) Close() error {
	return s.db.Close()
}

// === User Methods ===

func (s *Store) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	u := *user
	u.ID = uuid.NewString()
	u.CreatedAt = time.Now().UTC()

	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO users(id, username, password_hash, created_at)
		VALUES(:id, :username, :password_hash, :created_at)`, &u)
	if err != nil {
		return nil, translate(err, "create user")
	}
	return &u, nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	if err := s.db.GetContext(ctx, &u, `SELECT * FROM users WHERE id = ?`, id); err != nil {
		return nil, translate(err, "get user "+id)
	}
	return &u, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	var u domain.User
	if err := s.db.GetContext(ctx, &u, `SELECT * FROM users WHERE username = ?`, username); err != nil {
		return nil, translate(err, "get user by username")
	}
	return &u, nil
}

// === Post Methods ===

func (s *Store) CreatePost(ctx context.Context, post *domain.Post) (*domain.Post, error) {
	p := *post
	p.ID = uuid.NewString()
	p.CreatedAt = time.Now().UTC()
	p.Likes, p.Dislikes = 0, 0

	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO posts(id, title, body, user_id, likes, dislikes, created_at)
		VALUES(:id, :title, :body, :user_id, :likes, :dislikes, :created_at)`, &p)
	if err != nil {
		return nil, translate(err, "create post")
	}
	return &p, nil
}

func (s *Store) GetPostByID(ctx context.Context, id string) (*domain.Post, error) {
	var p domain.Post
	if err := s.db.GetContext(ctx, &p, `SELECT * FROM posts WHERE id = ?`, id); err != nil {
		return nil, translate(err, "get post "+id)
	}
	return &p, nil
}

func (s *Store) GetPosts(ctx context.Context) ([]*domain.Post, error) {
	posts := []*domain.Post{}
	if err := s.db.SelectContext(ctx, &posts, `SELECT * FROM posts ORDER BY created_at DESC, rowid DESC`); err != nil {
		return nil, translate(err, "list posts")
	}
	return posts, nil
}

// SearchPosts опирается на LIKE: без учета регистра только для ASCII.
func (s *Store) SearchPosts(ctx context.Context, query string) ([]*domain.Post, error) {
	posts := []*domain.Post{}
	err := s.db.SelectContext(ctx, &posts,
		`SELECT * FROM posts WHERE title LIKE ? ESCAPE '\' ORDER BY created_at DESC, rowid DESC`,
		"%"+escapeLike(query)+"%")
	if err != nil {
		return nil, translate(err, "search posts")
	}
	return posts, nil
}

// === Reply Methods ===

func (s *Store) CreateReply(ctx context.Context, reply *domain.Reply) (*domain.Reply, error) {
	r := *reply
	r.ID = uuid.NewString()
	r.CreatedAt = time.Now().UTC()
	r.Likes, r.Dislikes = 0, 0

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, translate(err, "begin reply tx")
	}
	defer tx.Rollback()

	var exists int
	if err := tx.GetContext(ctx, &exists, `SELECT COUNT(*) FROM posts WHERE id = ?`, r.PostID); err != nil {
		return nil, translate(err, "check post "+r.PostID)
	}
	if exists == 0 {
		return nil, fmt.Errorf("post with id %s: %w", r.PostID, domain.ErrNotFound)
	}

	_, err = tx.NamedExecContext(ctx,
		`INSERT INTO replies(id, post_id, user_id, body, likes, dislikes, created_at)
		VALUES(:id, :post_id, :user_id, :body, :likes, :dislikes, :created_at)`, &r)
	if err != nil {
		return nil, translate(err, "create reply")
	}
	if err := tx.Commit(); err != nil {
		return nil, translate(err, "commit reply")
	}
	return &r, nil
}

func (s *Store) GetReplyByID(ctx context.Context, id string) (*domain.Reply, error) {
	var r domain.Reply
	if err := s.db.GetContext(ctx, &r, `SELECT * FROM replies WHERE id = ?`, id); err != nil {
		return nil, translate(err, "get reply "+id)
	}
	return &r, nil
}

func (s *Store) GetRepliesByPostID(ctx context.Context, postID string) ([]*domain.Reply, error) {
	replies := []*domain.Reply{}
	err := s.db.SelectContext(ctx, &replies,
		`SELECT * FROM replies WHERE post_id = ? ORDER BY created_at ASC, rowid ASC`, postID)
	if err != nil {
		return nil, translate(err, "list replies")
	}
	return replies, nil
}

// === Counter Methods ===

func (s *Store) IncrementCounter(ctx context.Context, target domain.TargetType, id string, field domain.CounterField, delta int64) (domain.Counters, error) {
	var table string
	switch target {
	case domain.TargetPost:
		table = "posts"
	case domain.TargetReply:
		table = "replies"
	default:
		return domain.Counters{}, fmt.Errorf("unknown target %q: %w", target, domain.ErrValidation)
	}
	if field != domain.FieldLikes && field != domain.FieldDislikes {
		return domain.Counters{}, fmt.Errorf("unknown counter %q: %w", field, domain.ErrValidation)
	}

	// table и field взяты из белого списка выше
	q := fmt.Sprintf(`UPDATE %s SET %s = %s + ? WHERE id = ? RETURNING likes, dislikes`, table, field, field)
	counters := domain.Counters{TargetType: target, TargetID: id}
	if err := s.db.QueryRowxContext(ctx, q, delta, id).Scan(&counters.Likes, &counters.Dislikes); err != nil {
		return domain.Counters{}, translate(err, fmt.Sprintf("increment %s %s", target, id))
	}
	return counters, nil
}

// === Dataloader Method ===

func (s *Store) GetUsersByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error) {
	result := make(map[string]*domain.User, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	q, args, err := sqlx.In(`SELECT * FROM users WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("build users query: %w", err)
	}
	var users []*domain.User
	if err := s.db.SelectContext(ctx, &users, s.db.Rebind(q), args...); err != nil {
		return nil, translate(err, "load users")
	}
	for _, u := range users {
		result[u.ID] = u
	}
	return result, nil
}

func translate(err error, op string) error {
	var se *sqlite.Error
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	case errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return fmt.Errorf("%s: %w", op, domain.ErrConflict)
	case errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		// ссылка на несуществующего пользователя или пост
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	default:
		return fmt.Errorf("%w: %s: %w", domain.ErrPersistence, op, err)
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
