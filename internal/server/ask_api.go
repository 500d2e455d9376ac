package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dharmendrakumar4525/avidus-askdb/internal/routing"
	"github.com/dharmendrakumar4525/avidus-askdb/modules/askdb/domain/types"
	"github.com/dharmendrakumar4525/avidus-askdb/modules/askdb/services"
)

type askRequest struct {
	Question string `json:"question"`
}

func handleAskAPI(w http.ResponseWriter, r *http.Request, ask *services.AskService) {
	if r.Method != http.MethodPost {
		routing.WriteError(w, r, routing.RouteClassPublicAPI, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	if ask == nil {
		routing.WriteError(w, r, routing.RouteClassPublicAPI, http.StatusInternalServerError, "askdb_service_missing", "askdb service missing")
		return
	}
	user, ok := currentCaller(r.Context())
	if !ok {
		routing.WriteError(w, r, routing.RouteClassPublicAPI, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}

	var req askRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		routing.WriteError(w, r, routing.RouteClassPublicAPI, http.StatusBadRequest, "bad_json", "bad json")
		return
	}

	answer := ask.Ask(r.Context(), user, strings.TrimSpace(req.Question))
	writeJSON(w, http.StatusOK, answer)
}

type catalogResponse struct {
	Resources []types.ResourceMenuItem `json:"resources"`
}

func handleCatalogAPI(w http.ResponseWriter, r *http.Request, ask *services.AskService) {
	if r.Method != http.MethodGet {
		routing.WriteError(w, r, routing.RouteClassPublicAPI, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	if ask == nil {
		routing.WriteError(w, r, routing.RouteClassPublicAPI, http.StatusInternalServerError, "askdb_service_missing", "askdb service missing")
		return
	}
	user, ok := currentCaller(r.Context())
	if !ok {
		routing.WriteError(w, r, routing.RouteClassPublicAPI, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}

	menu := ask.MenuFor(user)
	if menu == nil {
		menu = make([]types.ResourceMenuItem, 0)
	}
	writeJSON(w, http.StatusOK, catalogResponse{Resources: menu})
}

func hasRequestBody(r *http.Request) bool {
	if r == nil || r.Body == nil {
		return false
	}
	if r.ContentLength > 0 {
		return true
	}
	if strings.EqualFold(strings.TrimSpace(r.Header.Get("Transfer-Encoding")), "chunked") {
		return true
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
