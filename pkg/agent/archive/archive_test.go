package archive

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/restockai/voiceline/pkg/agent/types"
)

func testRecord() Record {
	return Record{
		CallID:      "call_abc",
		PhoneNumber: "+15551234567",
		Status:      types.StatusCompleted,
		StartTime:   time.Now().Add(-90 * time.Second),
		History: []types.Turn{
			{Role: types.RoleSystem, Content: "internal instructions"},
			{Role: types.RoleAgent, Content: "Hi, this is Sarah.", Timestamp: time.Now()},
			{Role: types.RoleCaller, Content: "I need ten cases of water.", Timestamp: time.Now()},
		},
		Order: types.Order{
			CustomerName: "Alex",
			VenueName:    "Corner Deli",
			Items: []types.LineItem{
				{Product: "Artesian Water", Quantity: 10, UnitPrice: 20, LineTotal: 200},
			},
			Total: 200,
		},
	}
}

func TestPersistAndOpen(t *testing.T) {
	w, err := NewWriter(t.TempDir())
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	name, err := w.Persist(testRecord())
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if !strings.HasPrefix(name, "call_call_abc_") || !strings.HasSuffix(name, ".txt") {
		t.Fatalf("artifact name = %q", name)
	}

	path, ok := w.Open(name)
	if !ok {
		t.Fatalf("Open(%q) failed", name)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	text := string(data)

	if !strings.Contains(text, "Call ID: call_abc") {
		t.Errorf("call id missing:\n%s", text)
	}
	if !strings.Contains(text, "TOTAL ORDER VALUE: $200.00") {
		t.Errorf("order total missing:\n%s", text)
	}
	if !strings.Contains(text, "CUSTOMER") || !strings.Contains(text, "I need ten cases of water.") {
		t.Errorf("transcript missing:\n%s", text)
	}
	if strings.Contains(text, "internal instructions") {
		t.Errorf("system turn leaked into transcript:\n%s", text)
	}
}

func TestListFiltersAndSorts(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	writeAt := func(name string, mod time.Time) {
		path := dir + "/" + name
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		if err := os.Chtimes(path, mod, mod); err != nil {
			t.Fatalf("chtimes %s: %v", name, err)
		}
	}
	now := time.Now()
	writeAt("call_old.txt", now.Add(-time.Hour))
	writeAt("call_new.txt", now)
	writeAt("ignore.json", now)

	files, err := w.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("files = %+v", files)
	}
	if files[0].Name != "call_new.txt" || files[1].Name != "call_old.txt" {
		t.Fatalf("order = %s, %s", files[0].Name, files[1].Name)
	}
}

func TestOpenRejectsTraversal(t *testing.T) {
	w, err := NewWriter(t.TempDir())
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	for _, name := range []string{"../secrets.txt", "sub/dir.txt", "notes.json", "missing.txt"} {
		if _, ok := w.Open(name); ok {
			t.Errorf("Open(%q) succeeded", name)
		}
	}
}

func TestRenderIncludesAnalysis(t *testing.T) {
	rec := testRecord()
	rec.Analysis = &types.Analysis{
		CallSummary:       "Customer reordered water.",
		CustomerSentiment: "positive",
		NextSteps:         []string{"Schedule delivery"},
		OrderDetails: types.AnalysisOrder{
			Products: []types.AnalysisProduct{{Name: "Artesian Water", Quantity: 10, UnitPrice: 20, Total: 200}},
			Subtotal: 200,
			Total:    200,
		},
		CallMetrics: types.CallMetrics{Satisfaction: 8},
	}

	text := Render(rec)
	if !strings.Contains(text, "Summary: Customer reordered water.") {
		t.Errorf("summary missing:\n%s", text)
	}
	if !strings.Contains(text, "Satisfaction Score: 8/10") {
		t.Errorf("satisfaction missing:\n%s", text)
	}
	if !strings.Contains(text, "1. Schedule delivery") {
		t.Errorf("next steps missing:\n%s", text)
	}
}
