package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/lunchbox/pkg/children"
	"github.com/platinummonkey/lunchbox/pkg/httputil"
)

// ChildHandlers handles child and school HTTP requests
type ChildHandlers struct {
	children ChildService
}

// NewChildHandlers creates a new ChildHandlers
func NewChildHandlers(childService ChildService) *ChildHandlers {
	return &ChildHandlers{children: childService}
}

// RegisterRoutes registers the child management routes
func (h *ChildHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/schools", h.ListSchools).Methods("GET")
	router.HandleFunc("/children", h.ListChildren).Methods("GET")
	router.HandleFunc("/children", h.CreateChild).Methods("POST")
	router.HandleFunc("/children/{id}", h.GetChild).Methods("GET")
	router.HandleFunc("/children/{id}", h.UpdateChild).Methods("PUT")
	router.HandleFunc("/children/{id}", h.DeleteChild).Methods("DELETE")
}

// ListSchools returns the active schools ordered by name
func (h *ChildHandlers) ListSchools(w http.ResponseWriter, r *http.Request) {
	schools, err := h.children.ListSchools(r.Context())
	if err != nil {
		writeError(w, r, err, "Failed to list schools")
		return
	}
	if schools == nil {
		schools = []children.School{}
	}
	httputil.WriteSuccess(w, schools)
}

// ListChildren returns the caller's children
func (h *ChildHandlers) ListChildren(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	list, err := h.children.List(r.Context(), userID)
	if err != nil {
		writeError(w, r, err, "Failed to list children")
		return
	}
	if list == nil {
		list = []*children.Child{}
	}
	httputil.WriteSuccess(w, list)
}

// CreateChild adds a child to the caller
func (h *ChildHandlers) CreateChild(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var req children.Request
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	child, err := h.children.Create(r.Context(), userID, req)
	if err != nil {
		writeError(w, r, err, "Failed to create child")
		return
	}
	httputil.WriteCreated(w, child)
}

// GetChild returns one of the caller's children
func (h *ChildHandlers) GetChild(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	childID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	child, err := h.children.Get(r.Context(), userID, childID)
	if err != nil {
		writeError(w, r, err, "Failed to load child")
		return
	}
	httputil.WriteSuccess(w, child)
}

// UpdateChild replaces the details of one of the caller's children
func (h *ChildHandlers) UpdateChild(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	childID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	var req children.Request
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	child, err := h.children.Update(r.Context(), userID, childID, req)
	if err != nil {
		writeError(w, r, err, "Failed to update child")
		return
	}
	httputil.WriteSuccess(w, child)
}

// DeleteChild removes one of the caller's children
func (h *ChildHandlers) DeleteChild(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	childID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	if err := h.children.Delete(r.Context(), userID, childID); err != nil {
		writeError(w, r, err, "Failed to delete child")
		return
	}
	httputil.WriteNoContent(w)
}
