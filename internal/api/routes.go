package api

import (
	"github.com/gorilla/mux"

	"github.com/patrickwarner/adslotgate/internal/middleware"
)

// Router wires every endpoint of the service.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.WithRequestID, middleware.WithTraceLogger(s.Logger))

	r.HandleFunc("/evaluate", s.EvaluateHandler).Methods("POST")
	r.HandleFunc("/render", s.RenderHandler).Methods("POST")
	r.HandleFunc("/stats/slots", s.SlotStatsHandler).Methods("GET")
	r.HandleFunc("/health", s.HealthHandler).Methods("GET")
	r.HandleFunc("/reload", s.ReloadHandler).Methods("POST")

	crud := r.PathPrefix("/api").Subrouter()
	crud.HandleFunc("/placements", s.ListPlacements).Methods("GET")
	crud.HandleFunc("/placements", s.CreatePlacement).Methods("POST")
	crud.HandleFunc("/placements/{id}", s.GetPlacement).Methods("GET")
	crud.HandleFunc("/placements/{id}", s.UpdatePlacement).Methods("PUT")
	crud.HandleFunc("/placements/{id}", s.DeletePlacement).Methods("DELETE")
	crud.HandleFunc("/decisions/{request_id}", s.DecisionsHandler).Methods("GET")

	return r
}
