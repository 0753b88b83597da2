package httpapi

import (
	"fmt"
	"net/http"

	"github.com/UkralStul/discussion-forum/internal/auth"
	"github.com/UkralStul/discussion-forum/internal/dataloader"
	"github.com/UkralStul/discussion-forum/internal/domain"
	"github.com/UkralStul/discussion-forum/internal/forum"
	"github.com/UkralStul/discussion-forum/internal/live"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

// Handler - HTTP-обработчики форума.
type Handler struct {
	forum    *forum.Service
	observer *live.Observer
	upgrader websocket.Upgrader
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type newPostRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type newReplyRequest struct {
	PostID string `json:"postId"`
	Body   string `json:"body"`
}

type reactionRequest struct {
	TargetType domain.TargetType   `json:"targetType"`
	TargetID   string              `json:"targetId"`
	Kind       domain.ReactionKind `json:"kind"`
}

// postView - пост с именем автора, как в списке постов.
type postView struct {
	*domain.Post
	Author string `json:"author,omitempty"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := h.forum.Register(r.Context(), req.Username, req.Password); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"message": "User registered"})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	token, err := h.forum.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	identity, err := requireIdentity(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req newPostRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	post, err := h.forum.CreatePost(r.Context(), identity, req.Title, req.Body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.forum.ListPosts(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writePosts(w, r, posts)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	posts, err := h.forum.SearchPosts(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writePosts(w, r, posts)
}

// writePosts дополняет посты именами авторов через дата-лоадер запроса.
func (h *Handler) writePosts(w http.ResponseWriter, r *http.Request, posts []*domain.Post) {
	views := make([]postView, len(posts))
	for i, p := range posts {
		views[i] = postView{Post: p}
	}

	if loaders := dataloader.For(r.Context()); loaders != nil && len(posts) > 0 {
		ids := make([]string, len(posts))
		for i, p := range posts {
			ids[i] = p.UserID
		}
		names, err := loaders.Usernames(r.Context(), ids)
		if err != nil {
			writeError(w, r, err)
			return
		}
		for i := range views {
			views[i].Author = names[views[i].UserID]
		}
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	post, err := h.forum.GetPost(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (h *Handler) ListReplies(w http.ResponseWriter, r *http.Request) {
	replies, err := h.forum.ListReplies(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, replies)
}

func (h *Handler) CreateReply(w http.ResponseWriter, r *http.Request) {
	identity, err := requireIdentity(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req newReplyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	reply, err := h.forum.CreateReply(r.Context(), identity, req.PostID, req.Body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, reply)
}

// React - общий эндпоинт реакций, отдает обновленные счетчики.
func (h *Handler) React(w http.ResponseWriter, r *http.Request) {
	var req reactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	counters, err := h.forum.React(r.Context(), req.TargetType, req.TargetID, req.Kind)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, counters)
}

// reactTo обслуживает /posts/{id}/like и подобные маршруты: отдает запись целиком.
func (h *Handler) reactTo(target domain.TargetType, kind domain.ReactionKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		counters, err := h.forum.React(r.Context(), target, id, kind)
		if err != nil {
			writeError(w, r, err)
			return
		}

		var record any
		if target == domain.TargetPost {
			record, err = h.forum.GetPost(r.Context(), id)
		} else {
			record, err = h.forum.GetReply(r.Context(), id)
		}
		if err != nil {
			// реакция уже применена, отдаем хотя бы счетчики
			writeJSON(w, http.StatusOK, counters)
			return
		}
		writeJSON(w, http.StatusOK, record)
	}
}

func requireIdentity(r *http.Request) (domain.Identity, error) {
	identity, ok := auth.IdentityFrom(r.Context())
	if !ok {
		return domain.Identity{}, fmt.Errorf("no identity in request: %w", domain.ErrMissingToken)
	}
	return identity, nil
}
