package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dharmendrakumar4525/avidus-askdb/internal/routing"
	"github.com/dharmendrakumar4525/avidus-askdb/modules/askdb/domain/types"
	"github.com/dharmendrakumar4525/avidus-askdb/modules/askdb/services"
	"github.com/dharmendrakumar4525/avidus-askdb/pkg/uuidv7"
)

// conversationService keeps question/answer threads in memory, scoped to
// the tenant and caller that created them. Turns are read-only lookups:
// each one runs the full ask pipeline and records the rendered answer.
type conversationService struct {
	ask       *services.AskService
	mu        sync.RWMutex
	byID      map[string]*conversation
	byActorID map[string][]string
}

type conversation struct {
	ConversationID string              `json:"conversation_id"`
	TenantID       string              `json:"tenant_id"`
	ActorID        string              `json:"actor_id"`
	ActorRole      string              `json:"actor_role"`
	Title          string              `json:"title,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
	Turns          []*conversationTurn `json:"turns"`
}

type conversationTurn struct {
	TurnID    string                 `json:"turn_id"`
	Question  string                 `json:"question"`
	Answer    types.RenderedResponse `json:"answer"`
	ElapsedMs int64                  `json:"elapsed_ms"`
	CreatedAt time.Time              `json:"created_at"`
}

type createConversationRequest struct {
	Title string `json:"title"`
}

type createTurnRequest struct {
	Question string `json:"question"`
}

var (
	errConversationNotFound  = errors.New("conversation_not_found")
	errConversationForbidden = errors.New("conversation_forbidden")
	errConversationCorrupted = errors.New("conversation_corrupted")
)

func newConversationService(ask *services.AskService) *conversationService {
	return &conversationService{
		ask:       ask,
		byID:      make(map[string]*conversation),
		byActorID: make(map[string][]string),
	}
}

func handleConversationsAPI(w http.ResponseWriter, r *http.Request, svc *conversationService) {
	if r.Method != http.MethodPost {
		routing.WriteError(w, r, routing.RouteClassPublicAPI, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	if svc == nil {
		routing.WriteError(w, r, routing.RouteClassPublicAPI, http.StatusInternalServerError, "conversation_service_missing", "conversation service missing")
		return
	}
	tenant, ok := currentTenant(r.Context())
	if !ok {
		routing.WriteError(w, r, routing.RouteClassPublicAPI, http.StatusInternalServerError, "tenant_missing", "tenant missing")
		return
	}
	user, ok := currentCaller(r.Context())
	if !ok {
		routing.WriteError(w, r, routing.RouteClassPublicAPI, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}

	var req createConversationRequest
	if hasRequestBody(r) {
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			routing.WriteError(w, r, routing.RouteClassPublicAPI, http.StatusBadRequest, "bad_json", "bad json")
			return
		}
	}

	c := svc.createConversation(tenant.ID, user, strings.TrimSpace(req.Title))
	writeJSON(w, http.StatusOK, c)
}

func handleConversationDetailAPI(w http.ResponseWriter, r *http.Request, svc *conversationService) {
	if r.Method != http.MethodGet {
		routing.WriteError(w, r, routing.RouteClassPublicAPI, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	if svc == nil {
		routing.WriteError(w, r, routing.RouteClassPublicAPI, http.StatusInternalServerError, "conversation_service_missing", "conversation service missing")
		return
	}
	tenant, ok := currentTenant(r.Context())
	if !ok {
		routing.WriteError(w, r, routing.RouteClassPublicAPI, http.StatusInternalServerError, "tenant_missing", "tenant missing")
		return
	}
	user, ok := currentCaller(r.Context())
	if !ok {
		routing.WriteError(w, r, routing.RouteClassPublicAPI, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}

	conversationID, ok := extractConversationIDFromPath(r.URL.Path)
	if !ok {
		routing.WriteError(w, r, routing.RouteClassPublicAPI, http.StatusBadRequest, "invalid_request", "invalid conversation path")
		return
	}

	c, err := svc.getConversation(tenant.ID, user.CallerID, conversationID)
	if err != nil {
		writeConversationError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func handleConversationTurnsAPI(w http.ResponseWriter, r *http.Request, svc *conversationService) {
	if r.Method != http.MethodPost {
		routing.WriteError(w, r, routing.RouteClassPublicAPI, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	if svc == nil {
		routing.WriteError(w, r, routing.RouteClassPublicAPI, http.StatusInternalServerError, "conversation_service_missing", "conversation service missing")
		return
	}
	tenant, ok := currentTenant(r.Context())
	if !ok {
		routing.WriteError(w, r, routing.RouteClassPublicAPI, http.StatusInternalServerError, "tenant_missing", "tenant missing")
		return
	}
	user, ok := currentCaller(r.Context())
	if !ok {
		routing.WriteError(w, r, routing.RouteClassPublicAPI, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}

	conversationID, ok := extractConversationTurnsPathConversationID(r.URL.Path)
	if !ok {
		routing.WriteError(w, r, routing.RouteClassPublicAPI, http.StatusBadRequest, "invalid_request", "invalid turns path")
		return
	}

	var req createTurnRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		routing.WriteError(w, r, routing.RouteClassPublicAPI, http.StatusBadRequest, "bad_json", "bad json")
		return
	}

	c, err := svc.createTurn(r.Context(), tenant.ID, user, conversationID, strings.TrimSpace(req.Question))
	if err != nil {
		writeConversationError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func writeConversationError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errConversationNotFound):
		routing.WriteError(w, r, routing.RouteClassPublicAPI, http.StatusNotFound, "conversation_not_found", "conversation not found")
	case errors.Is(err, errConversationForbidden):
		routing.WriteError(w, r, routing.RouteClassPublicAPI, http.StatusForbidden, "forbidden", "forbidden")
	default:
		routing.WriteError(w, r, routing.RouteClassPublicAPI, http.StatusInternalServerError, "conversation_load_failed", "conversation load failed")
	}
}

// newPrefixedID issues a time-ordered id so conversations and turns list in
// creation order when sorted lexically.
func newPrefixedID(prefix string) string {
	s, err := uuidv7.NewString()
	if err != nil {
		s = uuid.NewString()
	}
	return prefix + strings.ReplaceAll(s, "-", "")
}

func (s *conversationService) createConversation(tenantID string, user types.UserContext, title string) *conversation {
	now := time.Now().UTC()
	c := &conversation{
		ConversationID: newPrefixedID("conv_"),
		TenantID:       tenantID,
		ActorID:        user.CallerID,
		ActorRole:      user.Role,
		Title:          title,
		CreatedAt:      now,
		UpdatedAt:      now,
		Turns:          make([]*conversationTurn, 0, 4),
	}

	s.mu.Lock()
	s.byID[c.ConversationID] = c
	s.byActorID[user.CallerID] = append(s.byActorID[user.CallerID], c.ConversationID)
	s.mu.Unlock()

	return cloneConversation(c)
}

func (s *conversationService) getConversation(tenantID string, actorID string, conversationID string) (*conversation, error) {
	s.mu.RLock()
	c, ok := s.byID[conversationID]
	s.mu.RUnlock()
	if !ok {
		return nil, errConversationNotFound
	}
	if c == nil {
		return nil, errConversationCorrupted
	}
	if c.TenantID != tenantID || c.ActorID != actorID {
		return nil, errConversationForbidden
	}
	return cloneConversation(c), nil
}

func (s *conversationService) createTurn(ctx context.Context, tenantID string, user types.UserContext, conversationID string, question string) (*conversation, error) {
	if err := s.checkOwnership(tenantID, user.CallerID, conversationID); err != nil {
		return nil, err
	}

	// The pipeline waits on the translator and on the store fetch. The lock
	// must not be held across either wait, or one slow turn stalls every
	// conversation in the process.
	started := time.Now()
	answer := s.ask.Ask(ctx, user, question)
	elapsed := time.Since(started).Milliseconds()

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byID[conversationID]
	if !ok || c == nil {
		return nil, errConversationNotFound
	}
	if c.TenantID != tenantID || c.ActorID != user.CallerID {
		return nil, errConversationForbidden
	}

	now := time.Now().UTC()
	turn := &conversationTurn{
		TurnID:    newPrefixedID("turn_"),
		Question:  question,
		Answer:    answer,
		ElapsedMs: elapsed,
		CreatedAt: now,
	}
	c.Turns = append(c.Turns, turn)
	c.UpdatedAt = now

	return cloneConversation(c), nil
}

func (s *conversationService) checkOwnership(tenantID string, actorID string, conversationID string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.byID[conversationID]
	if !ok {
		return errConversationNotFound
	}
	if c == nil {
		return errConversationCorrupted
	}
	if c.TenantID != tenantID || c.ActorID != actorID {
		return errConversationForbidden
	}
	return nil
}

func cloneConversation(in *conversation) *conversation {
	if in == nil {
		return nil
	}
	out := *in
	out.Turns = make([]*conversationTurn, 0, len(in.Turns))
	for _, turn := range in.Turns {
		if turn == nil {
			continue
		}
		copyTurn := *turn
		copyTurn.Answer.Data = append([]map[string]any(nil), turn.Answer.Data...)
		out.Turns = append(out.Turns, &copyTurn)
	}
	return &out
}

func extractConversationIDFromPath(path string) (string, bool) {
	parts := splitRouteSegments(path)
	if len(parts) != 4 {
		return "", false
	}
	if parts[0] != "api" || parts[1] != "askdb" || parts[2] != "conversations" {
		return "", false
	}
	conversationID := strings.TrimSpace(parts[3])
	if conversationID == "" {
		return "", false
	}
	return conversationID, true
}

func extractConversationTurnsPathConversationID(path string) (string, bool) {
	parts := splitRouteSegments(path)
	if len(parts) != 5 {
		return "", false
	}
	if parts[0] != "api" || parts[1] != "askdb" || parts[2] != "conversations" || parts[4] != "turns" {
		return "", false
	}
	conversationID := strings.TrimSpace(parts[3])
	if conversationID == "" {
		return "", false
	}
	return conversationID, true
}
