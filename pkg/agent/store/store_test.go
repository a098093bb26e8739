package store

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/restockai/voiceline/pkg/agent"
	"github.com/restockai/voiceline/pkg/agent/types"
)

func TestCreateSeedsSystemTurn(t *testing.T) {
	s := New()
	sess, err := s.Create("+15551234567", "instructions")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !strings.HasPrefix(sess.ID, "call_") {
		t.Fatalf("call ID %q missing prefix", sess.ID)
	}
	if sess.Status != types.StatusInitiated {
		t.Fatalf("status = %q, want %q", sess.Status, types.StatusInitiated)
	}

	st, ok := s.Get(sess.ID)
	if !ok {
		t.Fatalf("Get missed just-created call")
	}
	if st.Phase != types.PhaseGreeting {
		t.Fatalf("phase = %q, want %q", st.Phase, types.PhaseGreeting)
	}
	if len(st.History) != 1 || st.History[0].Role != types.RoleSystem {
		t.Fatalf("history = %+v, want single system turn", st.History)
	}
	if st.History[0].Content != "instructions" {
		t.Fatalf("system turn content = %q", st.History[0].Content)
	}
}

func TestDuplicateIDRejected(t *testing.T) {
	s := New()
	if _, err := s.createWithID("call_x", "+1555", "ctx"); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := s.createWithID("call_x", "+1555", "ctx")
	if err == nil {
		t.Fatalf("duplicate ID accepted")
	}
	var agentErr *agent.Error
	if !errors.As(err, &agentErr) || agentErr.Type != agent.ErrInvalidRequest {
		t.Fatalf("error = %v, want invalid_request_error", err)
	}
}

func TestFlagsAreMonotonic(t *testing.T) {
	s := New()
	sess, _ := s.Create("+1555", "ctx")

	if err := s.Update(sess.ID, func(cs *CallState) {
		cs.Flags.CustomerDone = true
		cs.Flags.UpsellAttempted = true
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := s.Update(sess.ID, func(cs *CallState) {
		cs.Flags = types.Flags{}
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	st, _ := s.Get(sess.ID)
	if !st.Flags.CustomerDone || !st.Flags.UpsellAttempted {
		t.Fatalf("flags were reset: %+v", st.Flags)
	}
}

func TestGetReturnsSnapshot(t *testing.T) {
	s := New()
	sess, _ := s.Create("+1555", "ctx")
	st, _ := s.Get(sess.ID)
	st.History = append(st.History, types.Turn{Role: types.RoleCaller, Content: "x"})
	st.Order.AddLine("Coffee", 2, 10)

	again, _ := s.Get(sess.ID)
	if len(again.History) != 1 || len(again.Order.Items) != 0 {
		t.Fatalf("mutating a snapshot leaked into the store")
	}
}

func TestIncrementTimeout(t *testing.T) {
	s := New()
	sess, _ := s.Create("+1555", "ctx")
	for want := 1; want <= 3; want++ {
		got, err := s.IncrementTimeout(sess.ID)
		if err != nil {
			t.Fatalf("IncrementTimeout: %v", err)
		}
		if got != want {
			t.Fatalf("attempt = %d, want %d", got, want)
		}
	}
}

func TestResolveCarrierRef(t *testing.T) {
	s := New()
	sess, _ := s.Create("+1555", "ctx")
	_ = s.Update(sess.ID, func(cs *CallState) { cs.Session.CarrierRef = "CA123" })

	id, ok := s.ResolveCarrierRef("CA123")
	if !ok || id != sess.ID {
		t.Fatalf("ResolveCarrierRef = %q, %v", id, ok)
	}
	if _, ok := s.ResolveCarrierRef("CA999"); ok {
		t.Fatalf("resolved unknown ref")
	}
	if _, ok := s.ResolveCarrierRef(""); ok {
		t.Fatalf("resolved empty ref")
	}
}

func TestDestroyIsIdempotent(t *testing.T) {
	s := New()
	sess, _ := s.Create("+1555", "ctx")
	s.Destroy(sess.ID)
	s.Destroy(sess.ID)
	if _, ok := s.Get(sess.ID); ok {
		t.Fatalf("call survived destroy")
	}
	if err := s.Update(sess.ID, func(*CallState) {}); err == nil {
		t.Fatalf("Update on destroyed call succeeded")
	}
}

func TestDestroyAfterImmediate(t *testing.T) {
	s := New()
	sess, _ := s.Create("+1555", "ctx")
	s.DestroyAfter(sess.ID, 0)
	if _, ok := s.Get(sess.ID); ok {
		t.Fatalf("non-positive grace did not destroy immediately")
	}
}

func TestDestroyAfterGraceWindow(t *testing.T) {
	s := New()
	sess, _ := s.Create("+1555", "ctx")
	s.DestroyAfter(sess.ID, 30*time.Millisecond)

	if _, ok := s.Get(sess.ID); !ok {
		t.Fatalf("call destroyed before grace elapsed")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := s.Get(sess.ID); !ok {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("call not destroyed after grace elapsed")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
