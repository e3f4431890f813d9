package handlers

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/axegao/axegaoshop/internal/app/payment"
	"github.com/axegao/axegaoshop/internal/app/storage"
)

type BaseHandler struct {
	*chi.Mux
	secretKey     string
	repo          storage.Repository
	allocator     *payment.Allocator
	settler       *payment.Settler
	pendingWindow time.Duration
}

func NewBaseHandler(repo storage.Repository, allocator *payment.Allocator, settler *payment.Settler, secretKey string, pendingWindow time.Duration) *BaseHandler {
	bh := &BaseHandler{
		Mux:           chi.NewMux(),
		secretKey:     secretKey,
		repo:          repo,
		allocator:     allocator,
		settler:       settler,
		pendingWindow: pendingWindow,
	}

	bh.Use(middleware.RequestID)
	bh.Use(middleware.RealIP)
	bh.Use(middleware.Logger)
	bh.Use(middleware.Recoverer)

	bh.Use(middleware.Compress(5))
	bh.Use(gzipHandle)

	bh.Route("/api", func(r chi.Router) {
		r.Post("/user/register", bh.register())
		r.Post("/user/login", bh.login())

		r.Get("/products", bh.listProducts())
		r.Get("/products/{id}", bh.getProduct())
		r.Get("/products/{id}/reviews", bh.listReviews())

		r.Group(func(r chi.Router) {
			r.Use(authHandle(bh.secretKey))

			r.Get("/user/balance", bh.getBalance())
			r.Get("/user/replenishes", bh.getReplenishes())

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", bh.getCart())
				r.Post("/", bh.addToCart())
				r.Delete("/{parameterID}", bh.removeFromCart())
			})

			r.Post("/orders", bh.createOrder())
			r.Get("/orders/{id}/check", bh.checkOrder())
			r.Post("/orders/{id}/cancel", bh.cancelOrder())

			r.Post("/balance/replenish", bh.createReplenish())
			r.Get("/balance/replenish/{number}", bh.checkReplenish())

			r.Post("/products/{id}/reviews", bh.createReview())

			r.Group(func(r chi.Router) {
				r.Use(adminHandle(bh.repo))
				r.Post("/products", bh.createProduct())
				r.Post("/products/{id}/parameters", bh.createParameter())
				r.Post("/products/{id}/parameters/{parameterID}/items", bh.addParameterItems())
				r.Post("/promocodes", bh.createPromocode())
			})
		})
	})

	return bh
}
