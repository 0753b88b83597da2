package cached

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/UkralStul/discussion-forum/internal/domain"
	"github.com/UkralStul/discussion-forum/internal/storage"
	"github.com/redis/go-redis/v9"
)

// raiseCounters пишет в хэш только значения больше текущих. Счетчики не убывают,
// поэтому устаревшее чтение из базы не может откатить кэш назад.
var raiseCounters = redis.NewScript(`
local key = KEYS[1]
for i = 1, #ARGV - 1, 2 do
	local cur = tonumber(redis.call('HGET', key, ARGV[i]) or '-1')
	local val = tonumber(ARGV[i + 1])
	if val > cur then
		redis.call('HSET', key, ARGV[i], val)
	end
end
redis.call('PEXPIRE', key, ARGV[#ARGV])
return 1
`)

// Store - read-through кэш постов и ответов в Redis поверх любого storage.Storage.
// Источник истины - обернутое хранилище, ошибки Redis только логируются.
type Store struct {
	storage.Storage
	client *redis.Client
	ttl    time.Duration
}

// New оборачивает backing. ttl <= 0 означает 5 минут.
func New(backing storage.Storage, client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Store{Storage: backing, client: client, ttl: ttl}
}

// NewClient создает клиента и проверяет соединение.
func NewClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

func recordKey(target domain.TargetType, id string) string {
	return fmt.Sprintf("%s:%s", target, id)
}

func countersKey(target domain.TargetType, id string) string {
	return fmt.Sprintf("%s:%s:counters", target, id)
}

func (s *Store) CreatePost(ctx context.Context, post *domain.Post) (*domain.Post, error) {
	created, err := s.Storage.CreatePost(ctx, post)
	if err != nil {
		return nil, err
	}
	s.put(ctx, domain.TargetPost, created.ID, created, created.Likes, created.Dislikes)
	return created, nil
}

func (s *Store) CreateReply(ctx context.Context, reply *domain.Reply) (*domain.Reply, error) {
	created, err := s.Storage.CreateReply(ctx, reply)
	if err != nil {
		return nil, err
	}
	s.put(ctx, domain.TargetReply, created.ID, created, created.Likes, created.Dislikes)
	return created, nil
}

func (s *Store) GetPostByID(ctx context.Context, id string) (*domain.Post, error) {
	var post domain.Post
	if s.get(ctx, domain.TargetPost, id, &post, &post.Likes, &post.Dislikes) {
		return &post, nil
	}
	p, err := s.Storage.GetPostByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.put(ctx, domain.TargetPost, id, p, p.Likes, p.Dislikes)
	return p, nil
}

func (s *Store) GetReplyByID(ctx context.Context, id string) (*domain.Reply, error) {
	var reply domain.Reply
	if s.get(ctx, domain.TargetReply, id, &reply, &reply.Likes, &reply.Dislikes) {
		return &reply, nil
	}
	r, err := s.Storage.GetReplyByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.put(ctx, domain.TargetReply, id, r, r.Likes, r.Dislikes)
	return r, nil
}

// IncrementCounter всегда идет в обернутое хранилище, затем поднимает счетчики в кэше.
func (s *Store) IncrementCounter(ctx context.Context, target domain.TargetType, id string, field domain.CounterField, delta int64) (domain.Counters, error) {
	counters, err := s.Storage.IncrementCounter(ctx, target, id, field, delta)
	if err != nil {
		return counters, err
	}
	s.raise(ctx, target, id, counters.Likes, counters.Dislikes)
	return counters, nil
}

// get читает запись и хэш счетчиков одним pipeline. Счетчики из хэша берутся,
// если они больше сохраненных в JSON.
func (s *Store) get(ctx context.Context, target domain.TargetType, id string, dst any, likes, dislikes *int64) bool {
	pipe := s.client.Pipeline()
	rec := pipe.Get(ctx, recordKey(target, id))
	cnt := pipe.HGetAll(ctx, countersKey(target, id))
	if _, err := pipe.Exec(ctx); err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("cache: read %s %s: %v", target, id, err)
		}
		return false
	}
	if err := json.Unmarshal([]byte(rec.Val()), dst); err != nil {
		log.Printf("cache: decode %s %s: %v", target, id, err)
		return false
	}
	vals := cnt.Val()
	if n, err := strconv.ParseInt(vals[string(domain.FieldLikes)], 10, 64); err == nil && n > *likes {
		*likes = n
	}
	if n, err := strconv.ParseInt(vals[string(domain.FieldDislikes)], 10, 64); err == nil && n > *dislikes {
		*dislikes = n
	}
	return true
}

func (s *Store) put(ctx context.Context, target domain.TargetType, id string, record any, likes, dislikes int64) {
	data, err := json.Marshal(record)
	if err != nil {
		log.Printf("cache: encode %s %s: %v", target, id, err)
		return
	}
	if err := s.client.Set(ctx, recordKey(target, id), data, s.ttl).Err(); err != nil {
		log.Printf("cache: write %s %s: %v", target, id, err)
		return
	}
	s.raise(ctx, target, id, likes, dislikes)
}

func (s *Store) raise(ctx context.Context, target domain.TargetType, id string, likes, dislikes int64) {
	err := raiseCounters.Run(ctx, s.client, []string{countersKey(target, id)},
		string(domain.FieldLikes), likes,
		string(domain.FieldDislikes), dislikes,
		s.ttl.Milliseconds(),
	).Err()
	if err != nil {
		log.Printf("cache: counters %s %s: %v", target, id, err)
	}
}
