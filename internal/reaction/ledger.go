package reaction

import (
	"context"
	"errors"
	"fmt"

	"github.com/UkralStul/discussion-forum/internal/domain"
)

// Incrementer - атомарный инкремент счетчика на стороне хранилища.
type Incrementer interface {
	IncrementCounter(ctx context.Context, target domain.TargetType, id string, field domain.CounterField, delta int64) (domain.Counters, error)
}

// Ledger применяет лайки и дизлайки к постам и ответам.
//
// Сериализация конкурентных реакций на одну запись целиком на хранилище:
// Ledger не держит блокировок и не делает read-modify-write.
type Ledger struct {
	store Incrementer
}

func NewLedger(store Incrementer) *Ledger {
	return &Ledger{store: store}
}

// Apply увеличивает на 1 счетчик kind у записи target/id.
// Несуществующая запись - domain.ErrNotFound без записи, сбой хранилища - domain.ErrPersistence.
// Повторов нет, решение о retry за вызывающим.
func (l *Ledger) Apply(ctx context.Context, target domain.TargetType, id string, kind domain.ReactionKind) (domain.Counters, error) {
	if !target.Valid() {
		return domain.Counters{}, fmt.Errorf("unknown target type %q: %w", target, domain.ErrValidation)
	}
	if !kind.Valid() {
		return domain.Counters{}, fmt.Errorf("unknown reaction %q: %w", kind, domain.ErrValidation)
	}
	if id == "" {
		return domain.Counters{}, fmt.Errorf("target id is empty: %w", domain.ErrValidation)
	}

	counters, err := l.store.IncrementCounter(ctx, target, id, kind.Field(), 1)
	switch {
	case err == nil:
		return counters, nil
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrPersistence):
		return domain.Counters{}, fmt.Errorf("apply %s on %s %s: %w", kind, target, id, err)
	default:
		// таймауты и отмена контекста тоже считаются сбоем хранилища
		return domain.Counters{}, fmt.Errorf("%w: %s on %s %s: %w", domain.ErrPersistence, kind, target, id, err)
	}
}
