package domain

import "time"

// User - зарегистрированный пользователь. PasswordHash никогда не отдается клиенту.
type User struct {
	ID           string    `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()" db:"id"`
	Username     string    `json:"username" gorm:"type:varchar(64);not null;uniqueIndex" db:"username"`
	PasswordHash string    `json:"-" gorm:"type:varchar(255);not null" db:"password_hash"`
	CreatedAt    time.Time `json:"createdAt" gorm:"not null;default:now()" db:"created_at"`
}

// Post представляет пост в системе.
type Post struct {
	ID        string    `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()" db:"id"`
	Title     string    `json:"title" gorm:"type:varchar(255);not null;index" db:"title"`
	Body      string    `json:"body" gorm:"type:text;not null" db:"body"`
	UserID    string    `json:"userId" gorm:"type:uuid;not null;index" db:"user_id"`
	Likes     int64     `json:"likes" gorm:"not null;default:0" db:"likes"`
	Dislikes  int64     `json:"dislikes" gorm:"not null;default:0" db:"dislikes"`
	CreatedAt time.Time `json:"createdAt" gorm:"not null;default:now()" db:"created_at"`
}

// Reply представляет ответ на пост.
type Reply struct {
	ID        string    `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()" db:"id"`
	PostID    string    `json:"postId" gorm:"type:uuid;not null;index" db:"post_id"`
	UserID    string    `json:"userId" gorm:"type:uuid;not null;index" db:"user_id"`
	Body      string    `json:"body" gorm:"type:text;not null" db:"body"`
	Likes     int64     `json:"likes" gorm:"not null;default:0" db:"likes"`
	Dislikes  int64     `json:"dislikes" gorm:"not null;default:0" db:"dislikes"`
	CreatedAt time.Time `json:"createdAt" gorm:"not null;default:now()" db:"created_at"`
}

// Identity - вызывающий пользователь, полученный из проверенного токена. Не сохраняется.
type Identity struct {
	UserID    string
	ExpiresAt time.Time
}

// TargetType - тип записи, к которой применяется реакция.
type TargetType string

const (
	TargetPost  TargetType = "post"
	TargetReply TargetType = "reply"
)

func (t TargetType) Valid() bool {
	return t == TargetPost || t == TargetReply
}

// ReactionKind - лайк или дизлайк.
type ReactionKind string

const (
	ReactionLike    ReactionKind = "like"
	ReactionDislike ReactionKind = "dislike"
)

func (k ReactionKind) Valid() bool {
	return k == ReactionLike || k == ReactionDislike
}

// CounterField - счетчик, который увеличивает реакция.
type CounterField string

const (
	FieldLikes    CounterField = "likes"
	FieldDislikes CounterField = "dislikes"
)

// Field возвращает счетчик для данного вида реакции.
func (k ReactionKind) Field() CounterField {
	if k == ReactionDislike {
		return FieldDislikes
	}
	return FieldLikes
}

// Counters - состояние счетчиков записи после обновления.
type Counters struct {
	TargetType TargetType `json:"targetType"`
	TargetID   string     `json:"targetId"`
	Likes      int64      `json:"likes"`
	Dislikes   int64      `json:"dislikes"`
}
