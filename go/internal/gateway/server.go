package gateway

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// Routes collects the handlers mounted on the HTTP server. Nil handlers are
// not mounted.
type Routes struct {
	WebSocket *WebSocketHandler
	State     *StateHandler
	Live      http.HandlerFunc
	Ready     http.Handler
	Metrics   http.Handler
}

// NewRouter builds the service's HTTP handler: a gorilla router behind CORS,
// served over HTTP/1.1 or cleartext HTTP/2.
func NewRouter(routes Routes) http.Handler {
	r := mux.NewRouter()

	if routes.WebSocket != nil {
		r.HandleFunc("/ws", routes.WebSocket.HandleConnection).Methods(http.MethodGet)
		r.HandleFunc("/ws/stats", routes.WebSocket.HandleConnectionStats).Methods(http.MethodGet)
	}
	if routes.State != nil {
		r.HandleFunc("/api/rooms/{id}/state", routes.State.HandleGetRoomState).Methods(http.MethodGet)
	}
	if routes.Live != nil {
		r.HandleFunc("/health", routes.Live).Methods(http.MethodGet)
	}
	if routes.Ready != nil {
		r.Handle("/ready", routes.Ready).Methods(http.MethodGet)
	}
	if routes.Metrics != nil {
		r.Handle("/metrics", routes.Metrics).Methods(http.MethodGet)
	}

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodOptions,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	return h2c.NewHandler(c.Handler(r), &http2.Server{})
}
