package rest

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/swaggo/swag"

	"github.com/emworks/ux-agent/internal/config"
	"github.com/emworks/ux-agent/internal/service"
	"github.com/emworks/ux-agent/internal/transport/rest/handler"
	"github.com/emworks/ux-agent/internal/transport/ws"

	_ "github.com/emworks/ux-agent/docs"
)

// Container holds all dependencies for the router
type Container struct {
	UserService *service.UserService
	RoomService *service.RoomService
	Engine      *service.Engine
	WSHub       *ws.Hub
	CORS        config.CORSConfig
	Debug       bool
}

// NewRouter creates the API router with all endpoints
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()

	userHandler := handler.NewUserHandler(c.UserService)
	roomHandler := handler.NewRoomHandler(c.RoomService)
	wsHandler := ws.NewHandler(c.WSHub, c.Engine, c.RoomService, c.Debug)

	// CORS middleware (apply first)
	r.Use(corsMiddleware(c.CORS))

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/users", userHandler.List).Methods("GET", "OPTIONS")
	api.HandleFunc("/users", userHandler.Create).Methods("POST", "OPTIONS")
	api.HandleFunc("/rooms", roomHandler.List).Methods("GET", "OPTIONS")
	api.HandleFunc("/rooms", roomHandler.Create).Methods("POST", "OPTIONS")
	api.HandleFunc("/rooms/{id}", roomHandler.Get).Methods("GET", "OPTIONS")
	api.HandleFunc("/rooms/{id}", roomHandler.Delete).Methods("DELETE", "OPTIONS")
	api.HandleFunc("/rooms/{id}/join", roomHandler.Join).Methods("PUT", "OPTIONS")
	api.HandleFunc("/rooms/{id}/leave", roomHandler.Leave).Methods("PUT", "OPTIONS")
	api.HandleFunc("/rooms/{id}/messages", roomHandler.Messages).Methods("GET", "OPTIONS")
	api.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods("HEAD")

	// WebSocket route, one socket per room subscription
	r.HandleFunc("/rooms/{id}", wsHandler.RoomWS).Methods("GET")

	r.HandleFunc("/api-docs/doc.json", func(w http.ResponseWriter, r *http.Request) {
		doc, err := swag.ReadDoc()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(doc))
	}).Methods("GET")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	return r
}

func corsMiddleware(cfg config.CORSConfig) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", cfg.AllowedOrigins)
			w.Header().Set("Access-Control-Allow-Methods", cfg.AllowedMethods)
			w.Header().Set("Access-Control-Allow-Headers", cfg.AllowedHeaders)

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
