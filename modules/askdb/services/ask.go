package services

import (
	"context"
	"log"
	"strings"

	"github.com/dharmendrakumar4525/avidus-askdb/modules/askdb/domain/ports"
	"github.com/dharmendrakumar4525/avidus-askdb/modules/askdb/domain/types"
)

// AskService wires the whole pipeline: guard, translator, sanitizer,
// executor, renderer. Stateless; safe for concurrent use.
type AskService struct {
	guard      *Guard
	translator ports.Translator
	executor   *Executor
}

func NewAskService(guard *Guard, translator ports.Translator, executor *Executor) *AskService {
	return &AskService{guard: guard, translator: translator, executor: executor}
}

// Ask answers one natural-language question for one caller. Every failure
// below the sanitizer/executor boundary collapses into a clarification or
// the fixed no-data response; nothing about schema shape, permission
// boundaries or store errors reaches the response text.
func (s *AskService) Ask(ctx context.Context, user types.UserContext, question string) types.RenderedResponse {
	question = strings.TrimSpace(question)
	if question == "" {
		return Render(types.ExecutionResult{}, ClarifyUnclear)
	}

	guard := s.guard.Resolve(user)
	if len(guard.AllowedResourceKeys) == 0 {
		return Render(types.ExecutionResult{}, ClarifyNoAccess)
	}

	intent, err := s.translator.Translate(ctx, question, s.guard.Menu(guard))
	if err != nil {
		log.Printf("askdb: translate failed tenant=%s caller=%s: %v", user.TenantID, user.CallerID, err)
		return Render(types.ExecutionResult{}, ClarifyUnclear)
	}

	query, clarification := Sanitize(intent, guard)
	if clarification != "" {
		return Render(types.ExecutionResult{}, clarification)
	}

	result := s.executor.Execute(ctx, query, guard.ScopeFilter(query.ResourceKey), user.TenantID)
	if result.Err != "" {
		log.Printf("askdb: execute failed tenant=%s resource=%s kind=%s", user.TenantID, query.ResourceKey, result.Err)
	}
	return Render(result, "")
}

// MenuFor exposes the caller's allowed resource menu (the same menu the
// translator sees).
func (s *AskService) MenuFor(user types.UserContext) []types.ResourceMenuItem {
	return s.guard.Menu(s.guard.Resolve(user))
}
