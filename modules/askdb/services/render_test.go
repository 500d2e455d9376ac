package services

import (
	"strings"
	"testing"

	"github.com/dharmendrakumar4525/avidus-askdb/modules/askdb/domain/types"
)

func TestRender_Clarification(t *testing.T) {
	out := Render(types.ExecutionResult{}, ClarifyNoAccess)
	if out.Text != ClarifyNoAccess {
		t.Fatalf("text=%q", out.Text)
	}
	if out.HasData || out.Data == nil || len(out.Data) != 0 {
		t.Fatalf("out=%+v", out)
	}
}

func TestRender_EmptyAndErrorAreIndistinguishable(t *testing.T) {
	empty := Render(types.ExecutionResult{ResourceKey: "sites", Records: []map[string]any{}}, "")
	failed := Render(types.ExecutionResult{ResourceKey: "sites", Records: []map[string]any{}, Err: ErrKindExecutionFailure}, "")
	timedOut := Render(types.ExecutionResult{ResourceKey: "sites", Records: []map[string]any{}, Err: ErrKindExecutionTimeout}, "")

	if empty.Text != NoDataMessage {
		t.Fatalf("text=%q", empty.Text)
	}
	if failed.Text != empty.Text || timedOut.Text != empty.Text {
		t.Fatal("failure responses must match the empty response")
	}
	if failed.HasData || timedOut.HasData {
		t.Fatal("no data flag leaked")
	}
}

func TestRender_CountAndSample(t *testing.T) {
	records := []map[string]any{
		{"name": "Central", "status": "active"},
		{"name": "North", "status": "active"},
	}
	out := Render(types.ExecutionResult{ResourceKey: "sites", Records: records, Total: 2}, "")

	if !out.HasData || out.Total != 2 {
		t.Fatalf("out=%+v", out)
	}
	if out.ResourceKey != "sites" {
		t.Fatalf("resource_key=%q", out.ResourceKey)
	}
	if !strings.HasPrefix(out.Text, "Found 2 sites.") {
		t.Fatalf("text=%q", out.Text)
	}
	if !strings.Contains(out.Text, "1. name: Central") || !strings.Contains(out.Text, "2. name: North") {
		t.Fatalf("text=%q", out.Text)
	}
	if len(out.Data) != 2 {
		t.Fatalf("data=%v", out.Data)
	}
}

func TestRender_SingularNoun(t *testing.T) {
	out := Render(types.ExecutionResult{
		ResourceKey: "purchase_orders",
		Records:     []map[string]any{{"po_number": "PO-77"}},
		Total:       1,
	}, "")
	if !strings.HasPrefix(out.Text, "Found 1 purchase order.") {
		t.Fatalf("text=%q", out.Text)
	}
	if !strings.Contains(out.Text, "po_number: PO-77") {
		t.Fatalf("text=%q", out.Text)
	}
}

func TestRender_SampleCap(t *testing.T) {
	records := make([]map[string]any, 8)
	for i := range records {
		records[i] = map[string]any{"name": strings.Repeat("x", i+1)}
	}
	out := Render(types.ExecutionResult{ResourceKey: "sites", Records: records, Total: 8}, "")

	if strings.Count(out.Text, "\n") != renderSampleSize+1 {
		t.Fatalf("text=%q", out.Text)
	}
	if !strings.Contains(out.Text, "…and 3 more.") {
		t.Fatalf("text=%q", out.Text)
	}
	// Full record set still returned for programmatic use.
	if len(out.Data) != 8 {
		t.Fatalf("data=%d", len(out.Data))
	}
}

func TestRender_IdentifyingFieldPriority(t *testing.T) {
	out := Render(types.ExecutionResult{
		ResourceKey: "tickets",
		Records: []map[string]any{
			{"status": "open", "title": "Printer down", "ticket_number": "T-9"},
		},
		Total: 1,
	}, "")
	// title beats ticket_number and status in the priority list.
	if !strings.Contains(out.Text, "title: Printer down") {
		t.Fatalf("text=%q", out.Text)
	}
}

func TestRender_FallbackSerializationDeterministic(t *testing.T) {
	record := map[string]any{"zulu": 1, "alpha": 2, "mike": 3}
	res := types.ExecutionResult{ResourceKey: "sites", Records: []map[string]any{record}, Total: 1}

	first := Render(res, "")
	second := Render(res, "")
	if first.Text != second.Text {
		t.Fatalf("non-deterministic: %q vs %q", first.Text, second.Text)
	}
	if !strings.Contains(first.Text, `"alpha":2`) {
		t.Fatalf("text=%q", first.Text)
	}
}

func TestRender_LongDescriptorTruncated(t *testing.T) {
	out := Render(types.ExecutionResult{
		ResourceKey: "sites",
		Records:     []map[string]any{{"name": strings.Repeat("a", 300)}},
		Total:       1,
	}, "")
	lines := strings.Split(out.Text, "\n")
	if len(lines) != 2 {
		t.Fatalf("text=%q", out.Text)
	}
	if !strings.HasSuffix(lines[1], "…") {
		t.Fatalf("line=%q", lines[1])
	}
}
