package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"

	"github.com/dharmendrakumar4525/avidus-askdb/modules/askdb/domain/types"
	"github.com/dharmendrakumar4525/avidus-askdb/pkg/httperr"
)

// ChatTranslator turns questions into query intents through an
// OpenAI-compatible chat-completions endpoint. Whatever the model replies is
// untrusted; this adapter only parses it into a QueryIntent and leaves all
// validation to the sanitizer.
type ChatTranslator struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

func NewChatTranslator(baseURL string, apiKey string, model string) *ChatTranslator {
	return &ChatTranslator{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		model:   strings.TrimSpace(model),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func NewChatTranslatorFromEnv() (*ChatTranslator, error) {
	baseURL := strings.TrimSpace(os.Getenv("ASKDB_LLM_URL"))
	if baseURL == "" {
		return nil, errors.New("translator: ASKDB_LLM_URL required")
	}
	model := strings.TrimSpace(os.Getenv("ASKDB_LLM_MODEL"))
	if model == "" {
		model = "gpt-4o-mini"
	}
	return NewChatTranslator(baseURL, os.Getenv("ASKDB_LLM_API_KEY"), model), nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string              `json:"model"`
	Messages       []chatMessage       `json:"messages"`
	Temperature    float64             `json:"temperature"`
	ResponseFormat *chatResponseFormat `json:"response_format,omitempty"`
}

type chatResponseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (t *ChatTranslator) Translate(ctx context.Context, question string, menu []types.ResourceMenuItem) (types.QueryIntent, error) {
	body, err := json.Marshal(chatRequest{
		Model: t.model,
		Messages: []chatMessage{
			{Role: "system", Content: buildSystemPrompt(menu)},
			{Role: "user", Content: question},
		},
		Temperature:    0,
		ResponseFormat: &chatResponseFormat{Type: "json_object"},
	})
	if err != nil {
		return types.QueryIntent{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return types.QueryIntent{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return types.QueryIntent{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			// Our request was rejected; retrying the same prompt won't help.
			return types.QueryIntent{}, httperr.NewBadRequest(fmt.Sprintf("translator: upstream status %d", resp.StatusCode))
		}
		return types.QueryIntent{}, fmt.Errorf("translator: upstream status %d", resp.StatusCode)
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return types.QueryIntent{}, err
	}
	if len(cr.Choices) == 0 {
		return types.QueryIntent{}, errors.New("translator: empty completion")
	}

	return ParseIntentJSON(cr.Choices[0].Message.Content)
}

// ParseIntentJSON decodes a model reply into a QueryIntent. Model output is
// frequently almost-JSON (markdown fences, trailing commas), so it is run
// through jsonrepair before decoding.
func ParseIntentJSON(raw string) (types.QueryIntent, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return types.QueryIntent{}, errors.New("translator: empty reply")
	}

	var intent types.QueryIntent
	if err := json.Unmarshal([]byte(raw), &intent); err == nil {
		return intent, nil
	}

	repaired, err := jsonrepair.JSONRepair(raw)
	if err != nil {
		return types.QueryIntent{}, err
	}
	if err := json.Unmarshal([]byte(repaired), &intent); err != nil {
		return types.QueryIntent{}, err
	}
	return intent, nil
}

func buildSystemPrompt(menu []types.ResourceMenuItem) string {
	var b strings.Builder
	b.WriteString("You translate a user question into a JSON query intent for a read-only data gateway.\n")
	b.WriteString("Reply with exactly one JSON object and nothing else. Either:\n")
	b.WriteString(`  {"resource": "<key>", "filter": {...}, "projection": {"<field>": 1}, "limit": <n>}` + "\n")
	b.WriteString(`or {"clarification": "<question back to the user>"}` + "\n")
	b.WriteString("Filters may use only $eq,$ne,$gt,$gte,$lt,$lte,$in and the logical operators $and,$or.\n")
	b.WriteString("Only these resources and fields exist:\n")
	for _, item := range menu {
		b.WriteString("- ")
		b.WriteString(item.Key)
		if item.Description != "" {
			b.WriteString(" (")
			b.WriteString(item.Description)
			b.WriteString(")")
		}
		b.WriteString(": ")
		b.WriteString(strings.Join(item.Fields, ", "))
		b.WriteString("\n")
	}
	b.WriteString("If the question cannot be answered from these resources, reply with a clarification.\n")
	return b.String()
}
