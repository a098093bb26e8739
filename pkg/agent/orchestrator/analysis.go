package orchestrator

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/restockai/voiceline/pkg/agent/store"
	"github.com/restockai/voiceline/pkg/agent/types"
)

// parseAnalysis extracts the model's JSON analysis, tolerating prose and
// code fences around the object. When no parseable object is found, a
// deterministic analysis is built from the session itself so the caller
// always gets a result.
func parseAnalysis(raw string, st store.CallState) *types.Analysis {
	if obj := extractJSON(raw); obj != "" {
		var a types.Analysis
		if err := json.Unmarshal([]byte(obj), &a); err == nil && a.CallSummary != "" {
			return &a
		}
	}
	return fallbackAnalysis(st)
}

// extractJSON returns the first balanced top-level JSON object in s.
func extractJSON(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			escaped = inString
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[start : i+1]
				}
			}
		}
	}
	return ""
}

func fallbackAnalysis(st store.CallState) *types.Analysis {
	products := make([]types.AnalysisProduct, 0, len(st.Order.Items))
	for _, item := range st.Order.Items {
		products = append(products, types.AnalysisProduct{
			Name:      item.Product,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Total:     item.LineTotal,
		})
	}

	summary := "Call completed without a captured order."
	if len(products) > 0 {
		summary = fmt.Sprintf("Customer placed an order with %d item(s) totaling $%.2f.",
			len(products), st.Order.Total)
	}

	dur := "unknown"
	if !st.Session.StartTime.IsZero() {
		d := time.Since(st.Session.StartTime)
		dur = fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
	}

	return &types.Analysis{
		CallSummary:       summary,
		CustomerSentiment: "neutral",
		OrderDetails: types.AnalysisOrder{
			Products: products,
			Subtotal: st.Order.Total,
			Total:    st.Order.Total,
		},
		CallMetrics: types.CallMetrics{
			Duration:     dur,
			ResponseTime: "normal",
			Satisfaction: 5,
		},
		NextSteps: []string{"Review the call transcript for follow-up actions."},
	}
}
