package auth

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/UkralStul/discussion-forum/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// Issuer пишется в iss и проверяется при разборе.
	Issuer = "discussion-forum"
	// DefaultTokenTTL - срок жизни токена по умолчанию.
	DefaultTokenTTL = time.Hour
)

// KeySource отдает ключ подписи. Смена источника (например, ротация) не трогает вызывающих.
type KeySource interface {
	SigningKey() ([]byte, error)
}

// StaticKey - ключ, заданный один раз при старте процесса.
type StaticKey []byte

func (k StaticKey) SigningKey() ([]byte, error) {
	if len(k) == 0 {
		return nil, errors.New("signing key is empty")
	}
	return k, nil
}

// TokenService выпускает и проверяет HS256 JWT с ограниченным сроком жизни.
type TokenService struct {
	keys KeySource
	ttl  time.Duration
	now  func() time.Time
}

// NewTokenService создает сервис. ttl < 1s означает DefaultTokenTTL, nil now - time.Now.
func NewTokenService(keys KeySource, ttl time.Duration, now func() time.Time) *TokenService {
	ttl = ttl.Truncate(time.Second)
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	if now == nil {
		now = time.Now
	}
	return &TokenService{keys: keys, ttl: ttl, now: now}
}

// TTL возвращает срок жизни выпускаемых токенов.
func (s *TokenService) TTL() time.Duration { return s.ttl }

// tokenClaims дополняет стандартные claims точным моментом истечения:
// NumericDate хранит только целые секунды.
type tokenClaims struct {
	jwt.RegisteredClaims
	ExpiresAtNano int64 `json:"exp_ns"`
}

// Issue выпускает токен для userID, действительный на [now, now+ttl) с точностью
// до наносекунды. exp округляется вверх до секунды, точную границу проверяет Verify.
func (s *TokenService) Issue(userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("user id is empty: %w", domain.ErrValidation)
	}
	key, err := s.keys.SigningKey()
	if err != nil {
		return "", fmt.Errorf("load signing key: %w", err)
	}

	issued := s.now()
	expires := issued.Add(s.ttl)
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(ceilSecond(expires)),
			ID:        uuid.NewString(),
		},
		ExpiresAtNano: expires.UnixNano(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Verify проверяет подпись, затем срок, затем issuer и subject.
// Любой отказ - domain.ErrInvalidToken, причина только в логе.
func (s *TokenService) Verify(token string) (domain.Identity, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
		jwt.WithStrictDecoding(),
	)

	var claims tokenClaims
	_, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.keys.SigningKey()
	})
	if err != nil {
		log.Printf("auth: token rejected: %v", err)
		return domain.Identity{}, domain.ErrInvalidToken
	}

	expires := time.Unix(0, claims.ExpiresAtNano)
	if claims.ExpiresAtNano <= 0 || !s.now().Before(expires) {
		log.Printf("auth: token rejected: expired at %s", expires.UTC().Format(time.RFC3339Nano))
		return domain.Identity{}, domain.ErrInvalidToken
	}
	if claims.Subject == "" {
		log.Printf("auth: token rejected: empty subject")
		return domain.Identity{}, domain.ErrInvalidToken
	}

	return domain.Identity{UserID: claims.Subject, ExpiresAt: expires}, nil
}

func ceilSecond(t time.Time) time.Time {
	if r := t.Truncate(time.Second); !r.Equal(t) {
		return r.Add(time.Second)
	}
	return t
}
