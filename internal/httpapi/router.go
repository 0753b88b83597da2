package httpapi

import (
	"net/http"

	"github.com/UkralStul/discussion-forum/internal/auth"
	"github.com/UkralStul/discussion-forum/internal/dataloader"
	"github.com/UkralStul/discussion-forum/internal/domain"
	"github.com/UkralStul/discussion-forum/internal/forum"
	"github.com/UkralStul/discussion-forum/internal/live"
	"github.com/UkralStul/discussion-forum/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter собирает REST API форума.
func NewRouter(svc *forum.Service, guard *auth.Guard, users storage.UserBatcher, observer *live.Observer) http.Handler {
	h := &Handler{
		forum:    svc,
		observer: observer,
		upgrader: newUpgrader(),
	}

	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)

	router.Route("/api", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)

		r.Get("/posts", h.ListPosts)
		r.Get("/posts/{id}", h.GetPost)
		r.Get("/posts/{id}/replies", h.ListReplies)
		r.Get("/posts/{id}/live", h.Live)
		r.Get("/search", h.Search)

		// Все мутации только с действительным токеном
		r.Group(func(r chi.Router) {
			r.Use(guard.Middleware)

			r.Post("/posts", h.CreatePost)
			r.Post("/posts/{id}/like", h.reactTo(domain.TargetPost, domain.ReactionLike))
			r.Post("/posts/{id}/dislike", h.reactTo(domain.TargetPost, domain.ReactionDislike))

			r.Post("/replies", h.CreateReply)
			r.Post("/replies/{id}/like", h.reactTo(domain.TargetReply, domain.ReactionLike))
			r.Post("/replies/{id}/dislike", h.reactTo(domain.TargetReply, domain.ReactionDislike))

			r.Post("/reactions", h.React)
		})
	})

	return dataloader.Middleware(users, router)
}
