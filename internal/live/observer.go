// internal/live/observer.go

package live

import (
	"context"
	"sync"

	"github.com/UkralStul/discussion-forum/internal/domain"
	"github.com/google/uuid"
)

// EventType - вид события в ленте поста.
type EventType string

const (
	EventReplyCreated    EventType = "reply_created"
	EventCountersUpdated EventType = "counters_updated"
)

// Event - сообщение подписчикам поста.
type Event struct {
	Type     EventType        `json:"type"`
	PostID   string           `json:"postId"`
	Reply    *domain.Reply    `json:"reply,omitempty"`
	Counters *domain.Counters `json:"counters,omitempty"`
}

// subscriberBuffer - сколько событий может отстать медленный подписчик, дальше они теряются.
const subscriberBuffer = 8

// Observer хранит каналы для подписчиков на события постов.
type Observer struct {
	mu sync.RWMutex
	//          map[postID] map[subscriberID] channel
	subs map[string]map[string]chan Event
}

// NewObserver - конструктор для нашего наблюдателя.
func NewObserver() *Observer {
	return &Observer{
		subs: make(map[string]map[string]chan Event),
	}
}

// Subscribe подписывает на события поста до отмены ctx, после чего канал закрывается.
func (o *Observer) Subscribe(ctx context.Context, postID string) <-chan Event {
	ch := make(chan Event, subscriberBuffer)
	subID := uuid.NewString()

	o.mu.Lock()
	if o.subs[postID] == nil {
		o.subs[postID] = make(map[string]chan Event)
	}
	o.subs[postID][subID] = ch
	o.mu.Unlock()

	// Горутина для очистки при отключении клиента
	go func() {
		<-ctx.Done()
		o.mu.Lock()
		if postSubs, ok := o.subs[postID]; ok {
			delete(postSubs, subID)
			if len(postSubs) == 0 {
				delete(o.subs, postID)
			}
		}
		close(ch)
		o.mu.Unlock()
	}()

	return ch
}

// Publish рассылает событие без блокировки: если канал подписчика полон, событие для него пропускается.
func (o *Observer) Publish(ev Event) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	for _, ch := range o.subs[ev.PostID] {
		select {
		case ch <- ev:
		default:
			// Клиент не успевает читать
		}
	}
}

// Subscribers возвращает число подписчиков поста.
func (o *Observer) Subscribers(postID string) int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.subs[postID])
}
