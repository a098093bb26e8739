// Package archive persists a call's transcript, order and optional
// analysis as a durable text artifact when the call ends.
package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/restockai/voiceline/pkg/agent/types"
)

const divider = "================================================================================"

// Record is everything persisted for one call.
type Record struct {
	CallID      string
	PhoneNumber string
	Status      types.CallStatus
	StartTime   time.Time
	History     []types.Turn
	Order       types.Order
	Analysis    *types.Analysis
}

// FileInfo describes one stored artifact.
type FileInfo struct {
	Name     string    `json:"filename"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// Writer writes artifacts into a directory.
type Writer struct {
	dir string
}

// NewWriter creates the archive directory if needed.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir %q: %w", dir, err)
	}
	return &Writer{dir: dir}, nil
}

// Dir returns the archive directory.
func (w *Writer) Dir() string {
	return w.dir
}

// Persist serializes the record to a text artifact and returns its
// filename.
func (w *Writer) Persist(rec Record) (string, error) {
	stamp := time.Now().UTC().Format("2006-01-02T15-04-05Z")
	name := fmt.Sprintf("call_%s_%s.txt", rec.CallID, stamp)
	if err := os.WriteFile(filepath.Join(w.dir, name), []byte(Render(rec)), 0o644); err != nil {
		return "", fmt.Errorf("write archive %q: %w", name, err)
	}
	return name, nil
}

// List returns stored artifacts, newest first.
func (w *Writer) List() ([]FileInfo, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, fmt.Errorf("read archive dir: %w", err)
	}
	out := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".txt") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, FileInfo{Name: e.Name(), Size: info.Size(), Modified: info.ModTime()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Modified.After(out[j].Modified) })
	return out, nil
}

// Open returns the path of a stored artifact, guarding against path
// traversal.
func (w *Writer) Open(name string) (string, bool) {
	clean := filepath.Base(name)
	if clean != name || !strings.HasSuffix(clean, ".txt") {
		return "", false
	}
	path := filepath.Join(w.dir, clean)
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

// Render formats the artifact text.
func Render(rec Record) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\nVOICE AGENT CALL HISTORY\n%s\n", divider, divider)
	fmt.Fprintf(&b, "Call ID: %s\n", rec.CallID)
	fmt.Fprintf(&b, "Date: %s\n", time.Now().Format(time.RFC1123))
	fmt.Fprintf(&b, "Duration: %s\n", duration(rec.StartTime))
	fmt.Fprintf(&b, "Customer Name: %s\n", orUnknown(rec.Order.CustomerName))
	fmt.Fprintf(&b, "Venue Name: %s\n", orUnknown(rec.Order.VenueName))
	fmt.Fprintf(&b, "Order Total: $%.2f\n", rec.Order.Total)
	fmt.Fprintf(&b, "Phone Number: %s\n", orUnknown(rec.PhoneNumber))
	fmt.Fprintf(&b, "Status: %s\n", rec.Status)

	if len(rec.Order.Items) > 0 {
		fmt.Fprintf(&b, "\n%s\nORDER DETAILS\n%s\n", divider, divider)
		for i, item := range rec.Order.Items {
			fmt.Fprintf(&b, "%d. %s\n", i+1, item.Product)
			fmt.Fprintf(&b, "   Quantity: %d cases\n", item.Quantity)
			fmt.Fprintf(&b, "   Price per case: $%.2f\n", item.UnitPrice)
			fmt.Fprintf(&b, "   Total: $%.2f\n\n", item.LineTotal)
		}
		fmt.Fprintf(&b, "TOTAL ORDER VALUE: $%.2f\n", rec.Order.Total)
	}

	fmt.Fprintf(&b, "\n%s\nCONVERSATION TRANSCRIPT\n%s\n\n", divider, divider)
	for _, turn := range rec.History {
		if turn.Role == types.RoleSystem {
			continue
		}
		speaker := "AGENT"
		if turn.Role == types.RoleCaller {
			speaker = "CUSTOMER"
		}
		fmt.Fprintf(&b, "%s [%s]\n%s\n\n", speaker, turn.Timestamp.Format("15:04:05"), turn.Content)
	}

	if rec.Analysis != nil {
		a := rec.Analysis
		fmt.Fprintf(&b, "%s\nCALL ANALYSIS\n%s\n", divider, divider)
		fmt.Fprintf(&b, "Summary: %s\n", a.CallSummary)
		fmt.Fprintf(&b, "Customer Sentiment: %s\n", a.CustomerSentiment)
		fmt.Fprintf(&b, "Satisfaction Score: %d/10\n\n", a.CallMetrics.Satisfaction)
		if len(a.OrderDetails.Products) > 0 {
			fmt.Fprintf(&b, "ORDER DETAILS:\n%s\n", strings.Repeat("-", 40))
			for i, p := range a.OrderDetails.Products {
				fmt.Fprintf(&b, "%d. %s\n", i+1, p.Name)
				fmt.Fprintf(&b, "   Quantity: %d cases\n", p.Quantity)
				fmt.Fprintf(&b, "   Unit Price: $%.2f\n", p.UnitPrice)
				fmt.Fprintf(&b, "   Total: $%.2f\n\n", p.Total)
			}
			fmt.Fprintf(&b, "Subtotal: $%.2f\nTax: $%.2f\nTOTAL: $%.2f\n\n",
				a.OrderDetails.Subtotal, a.OrderDetails.Tax, a.OrderDetails.Total)
		} else {
			b.WriteString("ORDER DETAILS: No order placed\n\n")
		}
		if len(a.NextSteps) > 0 {
			fmt.Fprintf(&b, "NEXT STEPS:\n%s\n", strings.Repeat("-", 40))
			for i, step := range a.NextSteps {
				fmt.Fprintf(&b, "%d. %s\n", i+1, step)
			}
			b.WriteString("\n")
		}
	}

	fmt.Fprintf(&b, "%s\nEND OF CALL HISTORY\n%s\n", divider, divider)
	return b.String()
}

func duration(start time.Time) string {
	if start.IsZero() {
		return "Unknown"
	}
	d := time.Since(start)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
