// Package server exposes any linkstore.Store over the /data record contract.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/xraph/escrow/linkstore"
)

type Server struct {
	store  linkstore.Store
	logger *slog.Logger
	router *mux.Router
}

// New builds the handler. Routes are registered under /data.
func New(store linkstore.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{store: store, logger: logger, router: mux.NewRouter()}
	s.Register(s.router)
	return s
}

// Register mounts the routes on r.
func (s *Server) Register(r *mux.Router) {
	r.HandleFunc("/data", s.list).Methods(http.MethodGet)
	r.HandleFunc("/data", s.create).Methods(http.MethodPost)
	r.HandleFunc("/data/{key}", s.get).Methods(http.MethodGet)
	r.HandleFunc("/data/{key}", s.update).Methods(http.MethodPut, http.MethodPatch)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	recs, err := s.store.List(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.Get(r.Context(), mux.Vars(r)["key"])
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	var rec linkstore.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, "malformed record")
		return
	}
	if err := s.store.Create(r.Context(), &rec); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, &rec)
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	var p linkstore.Patch
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "malformed patch")
		return
	}
	rec, err := s.store.Update(r.Context(), mux.Vars(r)["key"], p)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, linkstore.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, linkstore.ErrAlreadyExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, linkstore.ErrInvalidRecord):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("linkstore: request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
