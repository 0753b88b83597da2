package auth

import (
	"fmt"

	"github.com/UkralStul/discussion-forum/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// maxPasswordBytes - предел bcrypt, длиннее пароль молча обрезался бы.
const maxPasswordBytes = 72

// Hasher хэширует и проверяет пароли через bcrypt. Состояния нет, кроме cost.
type Hasher struct {
	cost  int
	dummy []byte
}

// NewHasher создает Hasher. cost вне допустимого диапазона заменяется на bcrypt.DefaultCost.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("dummy-password"), cost)
	if err != nil {
		panic(fmt.Sprintf("auth: generate dummy hash: %v", err))
	}
	return &Hasher{cost: cost, dummy: dummy}
}

// Hash возвращает bcrypt-дайджест со случайной солью.
func (h *Hasher) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", fmt.Errorf("password is empty: %w", domain.ErrValidation)
	}
	if len(plaintext) > maxPasswordBytes {
		return "", fmt.Errorf("password longer than %d bytes: %w", maxPasswordBytes, domain.ErrValidation)
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(digest), nil
}

// Verify сравнивает пароль с дайджестом. Битый дайджест дает false, а не ошибку.
func (h *Hasher) Verify(plaintext, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}

// DummyVerify тратит столько же CPU, сколько Verify, для логина несуществующего пользователя.
func (h *Hasher) DummyVerify(plaintext string) {
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(plaintext))
}
