package dataloader

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/UkralStul/discussion-forum/internal/domain"
	"github.com/UkralStul/discussion-forum/internal/storage"
	"github.com/graph-gophers/dataloader"
)

type contextKey string

const key = contextKey("dataloaders")

// Loaders содержит все дата-лоадеры приложения.
type Loaders struct {
	UserByID *dataloader.Loader
}

// NewLoaders создает лоадеры поверх хранилища. Лоадеры кэшируют результаты,
// поэтому живут не дольше одного запроса.
func NewLoaders(store storage.UserBatcher) *Loaders {
	// Создаем батч-функцию для лоадера
	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		ids := keys.Keys()

		// Вызываем метод хранилища, который делает ОДИН запрос к БД
		users, err := store.GetUsersByIDs(ctx, ids)
		results := make([]*dataloader.Result, len(keys))
		if err != nil {
			// В случае ошибки, возвращаем ее для всех ключей
			for i := range results {
				results[i] = &dataloader.Result{Error: err}
			}
			return results
		}

		// Формируем результат в том же порядке, что и ключи
		for i, id := range ids {
			if u, ok := users[id]; ok {
				results[i] = &dataloader.Result{Data: u}
			} else {
				results[i] = &dataloader.Result{Error: fmt.Errorf("user with id %s: %w", id, domain.ErrNotFound)}
			}
		}
		return results
	}

	return &Loaders{
		UserByID: dataloader.NewBatchedLoader(batchFn, dataloader.WithWait(time.Millisecond*1)),
	}
}

// Middleware для внедрения лоадеров в контекст запроса.
func Middleware(store storage.UserBatcher, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Помещаем их в контекст
		ctx := context.WithValue(r.Context(), key, NewLoaders(store))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// For извлекает лоадеры из контекста.
func For(ctx context.Context) *Loaders {
	loaders, _ := ctx.Value(key).(*Loaders)
	return loaders
}

// Usernames загружает имена авторов одним батчем. Ненайденные авторы пропускаются.
func (l *Loaders) Usernames(ctx context.Context, userIDs []string) (map[string]string, error) {
	thunks := make(map[string]dataloader.Thunk, len(userIDs))
	for _, id := range userIDs {
		if _, ok := thunks[id]; !ok {
			thunks[id] = l.UserByID.Load(ctx, dataloader.StringKey(id))
		}
	}

	names := make(map[string]string, len(thunks))
	for id, thunk := range thunks {
		data, err := thunk()
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, err
		}
		names[id] = data.(*domain.User).Username
	}
	return names, nil
}
