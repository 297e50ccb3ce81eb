package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/ghuser/lendingclub/services/lending/application/handlers"
	appsvcs "github.com/ghuser/lendingclub/services/lending/application/services"
)

// LendingRoutes registers the lending endpoints on the provided chi router.
func LendingRoutes(r chi.Router, svcs *appsvcs.Services) {
	members := handlers.NewMemberHandler(svcs)
	items := handlers.NewItemHandler(svcs)
	contracts := handlers.NewContractHandler(svcs)
	clock := handlers.NewClockHandler(svcs)

	r.Group(func(r chi.Router) {
		r.Route("/members", func(r chi.Router) {
			r.Post("/", members.Create)
			r.Get("/", members.List)
			r.Get("/leaderboard", members.Leaderboard)
			r.Route("/{memberID}", func(r chi.Router) {
				r.Get("/", members.Get)
				r.Put("/", members.Update)
				r.Delete("/", members.Delete)
				r.Get("/items", members.ListItems)
			})
		})
		r.Route("/items", func(r chi.Router) {
			r.Post("/", items.Create)
			r.Get("/", items.List)
			r.Route("/{itemID}", func(r chi.Router) {
				r.Get("/", items.Get)
				r.Put("/", items.Update)
				r.Delete("/", items.Delete)
				r.Post("/contracts", items.Lend)
			})
		})
		r.Get("/contracts/{contractID}", contracts.Get)
		r.Route("/clock", func(r chi.Router) {
			r.Get("/", clock.Get)
			r.Post("/advance", clock.Advance)
		})
	})
}
