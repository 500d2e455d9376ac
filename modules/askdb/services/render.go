package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dharmendrakumar4525/avidus-askdb/modules/askdb/domain/types"
)

// NoDataMessage is the single user-visible text for empty results and for
// every execution failure. Callers must not be able to tell the two apart
// from the response text.
const NoDataMessage = "No matching records were found for your request."

const (
	renderSampleSize = 5
	renderLineMaxLen = 120
)

// identifyingFields is the priority list used to describe a record in one
// line. First present, non-empty field wins.
var identifyingFields = []string{"name", "title", "po_number", "grn_number", "ticket_number", "code", "email", "status", "_id"}

// Render turns an execution result (or an upstream clarification) into the
// final response. Deterministic: same input, same text.
func Render(result types.ExecutionResult, clarification string) types.RenderedResponse {
	if c := strings.TrimSpace(clarification); c != "" {
		return types.RenderedResponse{Text: c, Data: []map[string]any{}}
	}
	if result.Err != "" || len(result.Records) == 0 {
		return types.RenderedResponse{Text: NoDataMessage, Data: []map[string]any{}}
	}

	var b strings.Builder
	b.WriteString(countSentence(result.Total, result.ResourceKey))
	sample := result.Records
	if len(sample) > renderSampleSize {
		sample = sample[:renderSampleSize]
	}
	for i, record := range sample {
		b.WriteString(fmt.Sprintf("\n%d. %s", i+1, describeRecord(record)))
	}
	if len(result.Records) > renderSampleSize {
		b.WriteString(fmt.Sprintf("\n…and %d more.", len(result.Records)-renderSampleSize))
	}

	return types.RenderedResponse{
		Text:        b.String(),
		ResourceKey: result.ResourceKey,
		Data:        result.Records,
		Total:       result.Total,
		HasData:     true,
	}
}

func countSentence(total int, resourceKey string) string {
	noun := strings.ReplaceAll(strings.TrimSpace(resourceKey), "_", " ")
	if noun == "" {
		noun = "records"
	}
	if total == 1 {
		noun = strings.TrimSuffix(noun, "s")
		return fmt.Sprintf("Found 1 %s.", noun)
	}
	return fmt.Sprintf("Found %d %s.", total, noun)
}

func describeRecord(record map[string]any) string {
	for _, field := range identifyingFields {
		v, ok := record[field]
		if !ok {
			continue
		}
		s := scalarString(v)
		if s == "" {
			continue
		}
		return field + ": " + truncateLine(s)
	}
	// json.Marshal sorts map keys, so the fallback stays deterministic.
	raw, err := json.Marshal(record)
	if err != nil {
		return "(record)"
	}
	return truncateLine(string(raw))
}

func scalarString(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case fmt.Stringer:
		return strings.TrimSpace(s.String())
	case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, bool:
		return fmt.Sprintf("%v", s)
	default:
		return ""
	}
}

func truncateLine(s string) string {
	runes := []rune(s)
	if len(runes) <= renderLineMaxLen {
		return s
	}
	return string(runes[:renderLineMaxLen]) + "…"
}
