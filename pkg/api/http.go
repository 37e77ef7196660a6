package api

import (
	"net/http"

	"bazarchat/pkg/api/handlers"
	"bazarchat/pkg/auth"
	"bazarchat/pkg/config"
	"bazarchat/pkg/realtime"

	"github.com/gorilla/mux"
)

// Handler assembles the versioned chat API: gorilla router, signature
// verification and the outer authentication gateway.
func Handler(sec auth.SecConfig, hub *realtime.Hub, rc config.RealtimeConfig, queued bool) http.Handler {
	r := mux.NewRouter()
	v1 := r.PathPrefix("/v1").Subrouter()
	handlers.RegisterChats(v1, hub, rc, queued)

	signed := auth.RequireSignedViewer(r)
	gate := auth.AuthenticateRequestMiddleware(sec)
	return gate(signed)
}
