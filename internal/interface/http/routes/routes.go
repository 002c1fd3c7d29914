package routes

import (
	"net/http"

	"user-api/internal/domain/service"
	"user-api/internal/interface/http/handler"
)

// Router holds the router dependencies
type Router struct {
	userService handler.UserService
	appService  service.AppService
}

// NewRouter creates a new router
func NewRouter(userService handler.UserService, appService service.AppService) *Router {
	return &Router{
		userService: userService,
		appService:  appService,
	}
}

// RegisterRoutes registers all routes. ServeMux answers 405 for a known path
// with an unregistered method.
func (r *Router) RegisterRoutes(mux *http.ServeMux) {
	rootHandler := handler.NewRootHandler(r.appService)
	usersHandler := handler.NewUsersHandler(r.userService)
	healthHandler := handler.NewHealthHandler(r.appService)

	mux.HandleFunc("GET /{$}", rootHandler.Handle)
	mux.HandleFunc("GET /health", healthHandler.Handle)

	mux.HandleFunc("POST /users", usersHandler.Create)
	mux.HandleFunc("GET /users/all", usersHandler.List)
	mux.HandleFunc("GET /users/searchByDate", usersHandler.Search)
	mux.HandleFunc("GET /users/{id}", usersHandler.Get)
	mux.HandleFunc("PUT /users/{id}", usersHandler.Replace)
	mux.HandleFunc("PATCH /users/{id}", usersHandler.Patch)
	mux.HandleFunc("DELETE /users/{id}", usersHandler.Delete)
}
