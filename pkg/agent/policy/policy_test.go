package policy

import (
	"strings"
	"testing"

	"github.com/restockai/voiceline/pkg/agent/types"
)

func TestReorderNeedsExplicitConfirmation(t *testing.T) {
	var order types.Order
	var flags types.Flags

	out := Apply(&order, &flags, "I'd like the same as last time")
	if out.Reply == "" || !strings.Contains(out.Reply, "Just to confirm") {
		t.Fatalf("reply = %q, want confirmation question", out.Reply)
	}
	if !strings.Contains(out.Reply, DefaultReorderProduct) {
		t.Fatalf("reply = %q, want product %q", out.Reply, DefaultReorderProduct)
	}
	if flags.ReorderConfirmed {
		t.Fatalf("reorder confirmed before the customer answered")
	}
	if order.Pending == nil || !order.Pending.AwaitingConfirm {
		t.Fatalf("pending = %+v, want awaiting confirmation", order.Pending)
	}
	if len(order.Items) != 0 {
		t.Fatalf("line added without quantity")
	}
}

func TestConfirmedReorderWithQuantityFinalizes(t *testing.T) {
	var order types.Order
	var flags types.Flags

	Apply(&order, &flags, "same as before please")
	out := Apply(&order, &flags, "yes, 10 cases")

	if !flags.ReorderConfirmed {
		t.Fatalf("reorder not confirmed")
	}
	if len(order.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(order.Items))
	}
	line := order.Items[0]
	if line.Product != DefaultReorderProduct || line.Quantity != 10 {
		t.Fatalf("line = %+v", line)
	}
	if line.LineTotal != 250 || order.Total != 250 {
		t.Fatalf("totals: line %.2f order %.2f", line.LineTotal, order.Total)
	}
	if !strings.Contains(out.Reply, "10 cases") {
		t.Fatalf("reply = %q", out.Reply)
	}
}

func TestConfirmedReorderWithoutQuantityAsksForOne(t *testing.T) {
	var order types.Order
	var flags types.Flags

	Apply(&order, &flags, "the usual")
	out := Apply(&order, &flags, "yes please")

	if !flags.ReorderConfirmed {
		t.Fatalf("reorder not confirmed")
	}
	if len(order.Items) != 0 {
		t.Fatalf("quantity was assumed: %+v", order.Items)
	}
	if !strings.Contains(out.Reply, "How many cases") {
		t.Fatalf("reply = %q, want quantity question", out.Reply)
	}
}

func TestDeclinedReorderClearsPending(t *testing.T) {
	var order types.Order
	var flags types.Flags

	Apply(&order, &flags, "same order as before")
	out := Apply(&order, &flags, "no, not this time")

	if order.Pending != nil {
		t.Fatalf("pending survived decline: %+v", order.Pending)
	}
	if out.Reply != "" {
		t.Fatalf("decline should hand the turn to the model, got %q", out.Reply)
	}
	if len(out.Hints) == 0 {
		t.Fatalf("decline should hint the model")
	}
}

func TestProductMentionThenQuantity(t *testing.T) {
	var order types.Order
	var flags types.Flags

	out := Apply(&order, &flags, "do you have coffee?")
	if !strings.Contains(out.Reply, "House Blend Coffee") {
		t.Fatalf("reply = %q", out.Reply)
	}
	if len(order.Items) != 0 {
		t.Fatalf("line added without quantity")
	}

	out = Apply(&order, &flags, "make it three cases")
	if len(order.Items) != 1 || order.Items[0].Quantity != 3 {
		t.Fatalf("items = %+v", order.Items)
	}
	if order.Total != 84 {
		t.Fatalf("total = %.2f, want 84", order.Total)
	}
	if !strings.Contains(out.Reply, "3 cases of House Blend Coffee") {
		t.Fatalf("reply = %q", out.Reply)
	}
}

func TestUpsellHappensAtMostOnce(t *testing.T) {
	var order types.Order
	var flags types.Flags

	first := Apply(&order, &flags, "2 cases of bagels please")
	if !flags.UpsellAttempted {
		t.Fatalf("first finalize should attempt the upsell")
	}
	if !strings.Contains(first.Reply, "Cream Cheese") {
		t.Fatalf("first reply = %q, want related-product suggestion", first.Reply)
	}

	second := Apply(&order, &flags, "also 2 cases of coffee")
	if strings.Contains(second.Reply, "many hotels also stock") {
		t.Fatalf("second finalize repeated the upsell: %q", second.Reply)
	}
	if len(order.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(order.Items))
	}
}

func TestDoneProducesSummaryAndFlag(t *testing.T) {
	var order types.Order
	var flags types.Flags

	Apply(&order, &flags, "5 cases of water")
	out := Apply(&order, &flags, "that's all, thanks")

	if !flags.CustomerDone {
		t.Fatalf("done flag not set")
	}
	if !strings.Contains(out.Reply, "5 cases of Bottled Water") {
		t.Fatalf("summary = %q", out.Reply)
	}
	if !strings.Contains(out.Reply, "$100.00") {
		t.Fatalf("summary total missing: %q", out.Reply)
	}
}

func TestDoneWithEmptyOrder(t *testing.T) {
	var order types.Order
	var flags types.Flags

	out := Apply(&order, &flags, "nothing else, goodbye")
	if !flags.CustomerDone {
		t.Fatalf("done flag not set")
	}
	if !strings.Contains(out.Reply, "Thank you for your time") {
		t.Fatalf("reply = %q", out.Reply)
	}
}

func TestQuantityOf(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"give me 5 cases", 5},
		{"twelve please", 12},
		{"maybe fifteen", 15},
		{"no numbers here", 0},
		{"0 cases", 0},
		{"100000 cases", 0},
	}
	for _, tc := range cases {
		if got := quantityOf(tc.in); got != tc.want {
			t.Errorf("quantityOf(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestLookupPrefersSpecificKeyword(t *testing.T) {
	item, ok := Lookup("we need cream cheese for the bagels")
	if !ok || item.Product != "Cream Cheese" {
		t.Fatalf("Lookup = %+v, %v", item, ok)
	}
}
