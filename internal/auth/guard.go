package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/UkralStul/discussion-forum/internal/domain"
)

type contextKey string

const identityKey = contextKey("identity")

// TokenVerifier - то, что нужно Guard от TokenService.
type TokenVerifier interface {
	Verify(token string) (domain.Identity, error)
}

// Guard пропускает дальше только запросы с действительным Bearer-токеном.
type Guard struct {
	tokens TokenVerifier
}

func NewGuard(tokens TokenVerifier) *Guard {
	return &Guard{tokens: tokens}
}

// Authenticate извлекает токен из заголовка Authorization и проверяет его.
// Нет заголовка или схема не Bearer - ErrMissingToken, иначе ошибка проверки дает ErrInvalidToken.
func (g *Guard) Authenticate(r *http.Request) (domain.Identity, error) {
	token := bearerToken(r)
	if token == "" {
		return domain.Identity{}, domain.ErrMissingToken
	}
	identity, err := g.tokens.Verify(token)
	if err != nil {
		return domain.Identity{}, domain.ErrInvalidToken
	}
	return identity, nil
}

// Middleware для chi: кладет Identity в контекст или завершает запрос с 401.
// Статус один для обоих отказов (RFC 6750), различаются они телом и заголовком:
// нет токена - {"error":"missing_token"} и "WWW-Authenticate: Bearer",
// токен негоден - {"error":"invalid_token"} и `Bearer error="invalid_token"`.
// Клиентам, которые ждали 400 на отсутствующий токен, надо смотреть на поле error.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := g.Authenticate(r)
		if err != nil {
			reject(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

// WithIdentity помещает Identity в контекст.
func WithIdentity(ctx context.Context, identity domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFrom извлекает Identity из контекста.
func IdentityFrom(ctx context.Context) (domain.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(domain.Identity)
	return identity, ok
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func reject(w http.ResponseWriter, err error) {
	code, message, challenge := "invalid_token", "invalid or expired token", `Bearer error="invalid_token"`
	if errors.Is(err, domain.ErrMissingToken) {
		code, message, challenge = "missing_token", "authorization token required", "Bearer"
	}
	w.Header().Set("WWW-Authenticate", challenge)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code, "message": message})
}
