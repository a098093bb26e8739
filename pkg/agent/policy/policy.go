// Package policy enforces the conversational rules of the sales agent as
// state transitions on the order and session flags, independent of prompt
// wording: quantities are never assumed, a reorder request needs explicit
// confirmation, at most one unsolicited upsell is made per call, and a
// customer who says they are done goes straight to the summary and close.
package policy

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/restockai/voiceline/pkg/agent/types"
)

// Outcome is the result of applying policy to one caller utterance.
type Outcome struct {
	// Reply, when non-empty, is a policy-mandated reply that replaces model
	// generation for this turn.
	Reply string

	// Hints are appended to the model request as extra guidance when the
	// reply is left to the model.
	Hints []string
}

var digitRe = regexp.MustCompile(`\b(\d+)\b`)

var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"eleven": 11, "twelve": 12, "fifteen": 15, "twenty": 20,
}

// Apply analyzes the caller utterance and mutates order and flags per the
// conversational policy. Flags only ever flip from false to true.
func Apply(order *types.Order, flags *types.Flags, utterance string) Outcome {
	lower := strings.ToLower(utterance)

	if isDone(lower) {
		flags.CustomerDone = true
		order.Pending = nil
		return Outcome{Reply: summaryReply(order)}
	}

	if isReorderRequest(lower) && !flags.ReorderConfirmed {
		product := order.LastProduct
		if product == "" {
			product = DefaultReorderProduct
		}
		item, ok := ByProduct(product)
		if !ok {
			item = Item{Product: product, UnitPrice: 25, MinCases: 2}
		}
		order.Pending = &types.PendingItem{
			Product:         item.Product,
			UnitPrice:       item.UnitPrice,
			MinCases:        item.MinCases,
			AwaitingConfirm: true,
		}
		return Outcome{Reply: fmt.Sprintf(
			"Just to confirm - would you like to reorder %s again? And how many cases this time?",
			item.Product,
		)}
	}

	if order.Pending != nil && order.Pending.AwaitingConfirm {
		if isNegative(lower) {
			order.Pending = nil
			return Outcome{Hints: []string{"The customer declined the reorder. Ask what they would like instead."}}
		}
		if isAffirmative(lower) || quantityOf(lower) > 0 {
			flags.ReorderConfirmed = true
			order.Pending.AwaitingConfirm = false
			if qty := quantityOf(lower); qty > 0 {
				return Outcome{Reply: finalize(order, flags, qty)}
			}
			return Outcome{Reply: fmt.Sprintf(
				"Great! How many cases of %s would you like? We recommend a minimum of %d cases at $%.0f per case.",
				order.Pending.Product, order.Pending.MinCases, order.Pending.UnitPrice,
			)}
		}
	}

	if item, ok := Lookup(lower); ok {
		order.Pending = &types.PendingItem{
			Product:   item.Product,
			UnitPrice: item.UnitPrice,
			MinCases:  item.MinCases,
		}
		if qty := quantityOf(lower); qty > 0 {
			return Outcome{Reply: finalize(order, flags, qty)}
		}
		return Outcome{Reply: fmt.Sprintf(
			"Perfect! How many cases of %s would you like? We recommend a minimum of %d cases at $%.0f per case.",
			item.Product, item.MinCases, item.UnitPrice,
		)}
	}

	if order.Pending != nil && !order.Pending.AwaitingConfirm {
		if qty := quantityOf(lower); qty > 0 {
			return Outcome{Reply: finalize(order, flags, qty)}
		}
	}

	return Outcome{Hints: hints(flags)}
}

// finalize turns the pending item into a confirmed line. An upsell tagline
// is appended at most once per call, and never after the customer is done.
func finalize(order *types.Order, flags *types.Flags, quantity int) string {
	pending := order.Pending
	order.Pending = nil
	line := order.AddLine(pending.Product, quantity, pending.UnitPrice)

	reply := fmt.Sprintf(
		"Excellent! I'll add %d cases of %s at $%.0f per case to your order. Anything else?",
		line.Quantity, line.Product, line.UnitPrice,
	)
	if !flags.UpsellAttempted && !flags.CustomerDone {
		if item, ok := ByProduct(pending.Product); ok && item.Related != "" {
			flags.UpsellAttempted = true
			reply = fmt.Sprintf(
				"Excellent! I'll add %d cases of %s at $%.0f per case to your order. By the way, many hotels also stock %s - would you like to add some? Anything else today?",
				line.Quantity, line.Product, line.UnitPrice, item.Related,
			)
		}
	}
	return reply
}

func summaryReply(order *types.Order) string {
	if len(order.Items) == 0 {
		return "No problem! Thank you for your time and have a great day!"
	}
	var b strings.Builder
	b.WriteString("Wonderful! Let me confirm your order: ")
	for i, item := range order.Items {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%d cases of %s at $%.0f per case", item.Quantity, item.Product, item.UnitPrice)
	}
	fmt.Fprintf(&b, ". Your total comes to $%.2f. Thank you for your time and have a great day!", order.Total)
	return b.String()
}

func hints(flags *types.Flags) []string {
	var out []string
	if flags.UpsellAttempted {
		out = append(out, "You have already made your one upsell suggestion; do not suggest additional products unless the customer asks.")
	}
	if flags.CustomerDone {
		out = append(out, "The customer indicated they are done; summarize the order and close politely.")
	}
	return out
}

func isReorderRequest(lower string) bool {
	for _, phrase := range []string{"same as last time", "same as before", "the usual", "usual order", "same order"} {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func isDone(lower string) bool {
	for _, phrase := range []string{
		"that's all", "that is all", "that'll be all", "that will be all",
		"nothing else", "i'm done", "im done", "we're good", "that's it",
		"that is it", "no thank", "goodbye",
	} {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func isAffirmative(lower string) bool {
	for _, phrase := range []string{"yes", "yeah", "yep", "sure", "correct", "go ahead", "sounds good", "please", "of course"} {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func isNegative(lower string) bool {
	return strings.Contains(lower, "no ") || lower == "no" ||
		strings.Contains(lower, "not ") || strings.Contains(lower, "don't")
}

// quantityOf extracts an explicit case quantity from the utterance, or 0
// when none was stated.
func quantityOf(lower string) int {
	if m := digitRe.FindStringSubmatch(lower); m != nil {
		n := 0
		for _, c := range m[1] {
			n = n*10 + int(c-'0')
		}
		if n > 0 && n < 1000 {
			return n
		}
		return 0
	}
	for _, word := range strings.FieldsFunc(lower, func(r rune) bool {
		return r == ' ' || r == ',' || r == '.' || r == '!' || r == '?'
	}) {
		if n, ok := numberWords[word]; ok {
			return n
		}
	}
	return 0
}
