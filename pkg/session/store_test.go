package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/TryMightyAI/decoy/pkg/protocol"
)

func TestGetCreatesSession(t *testing.T) {
	st := NewStore()
	s := st.Get("abc")
	if s.ID != "abc" {
		t.Errorf("ID = %q, want abc", s.ID)
	}
	if s.ScamType != "unknown" {
		t.Errorf("ScamType = %q, want unknown", s.ScamType)
	}
	if s.MessageCount != 0 || s.ScamDetected {
		t.Error("new session should be empty and unflagged")
	}
	if st.Len() != 1 {
		t.Errorf("Len = %d, want 1", st.Len())
	}
}

func TestSnapshotDoesNotCreate(t *testing.T) {
	st := NewStore()
	if _, ok := st.Snapshot("missing"); ok {
		t.Error("Snapshot should not report a session it never had")
	}
	if st.Len() != 0 {
		t.Error("Snapshot must not create sessions")
	}
}

func TestAppendMessageRecomputesCount(t *testing.T) {
	st := NewStore()
	for i := 1; i <= 3; i++ {
		if n := st.AppendMessage("s", protocol.Message{Sender: protocol.SenderScammer, Text: fmt.Sprintf("m%d", i)}); n != i {
			t.Errorf("count after %d appends = %d", i, n)
		}
	}
	s := st.Get("s")
	if len(s.Messages) != 3 || s.MessageCount != 3 {
		t.Errorf("messages = %d, count = %d, want 3/3", len(s.Messages), s.MessageCount)
	}
}

func TestSnapshotIsolation(t *testing.T) {
	st := NewStore()
	st.AppendMessage("s", protocol.Message{Sender: protocol.SenderScammer, Text: "hi"})
	st.AppendNote("s", "first note")

	snap := st.Get("s")
	snap.Messages[0].Text = "tampered"
	snap.AgentNotes[0] = "tampered"
	snap.Intelligence.UPIIDs = append(snap.Intelligence.UPIIDs, "x@upi")

	fresh := st.Get("s")
	if fresh.Messages[0].Text != "hi" {
		t.Error("snapshot mutation leaked into the store")
	}
	if fresh.AgentNotes[0] != "first note" {
		t.Error("note mutation leaked into the store")
	}
	if len(fresh.Intelligence.UPIIDs) != 0 {
		t.Error("intelligence mutation leaked into the store")
	}
}

func TestMergeIntelligenceIsIdempotent(t *testing.T) {
	st := NewStore()
	intel := protocol.Intelligence{
		BankAccounts: []string{"1234567890"},
		UPIIDs:       []string{"scam@paytm"},
	}
	first := st.MergeIntelligence("s", intel)
	second := st.MergeIntelligence("s", intel)

	if len(first.BankAccounts) != 1 || len(second.BankAccounts) != 1 {
		t.Errorf("bank accounts duplicated: %v", second.BankAccounts)
	}
	if len(second.UPIIDs) != 1 {
		t.Errorf("UPI ids duplicated: %v", second.UPIIDs)
	}
}

func TestUpdateClassificationOverwrites(t *testing.T) {
	st := NewStore()
	st.UpdateClassification("s", true, 0.9, "bank_fraud")
	st.UpdateClassification("s", true, 0.5, "phishing")

	s := st.Get("s")
	if s.Confidence != 0.5 || s.ScamType != "phishing" {
		t.Errorf("store applied a ratchet of its own: %+v", s)
	}
}

func TestNotesSummary(t *testing.T) {
	st := NewStore()
	s := st.Get("s")
	if got := s.NotesSummary(); got != "No specific notes recorded." {
		t.Errorf("empty summary = %q", got)
	}

	st.AppendNote("s", "Scam detected: phishing (confidence: 0.82)")
	st.AppendNote("s", "Extracted: 1 accounts, 0 UPIs, 1 links, 0 phones")
	s = st.Get("s")
	want := "Scam detected: phishing (confidence: 0.82) | Extracted: 1 accounts, 0 UPIs, 1 links, 0 phones"
	if got := s.NotesSummary(); got != want {
		t.Errorf("summary = %q, want %q", got, want)
	}
}

func TestEngaged(t *testing.T) {
	s := Session{MessageCount: 4}
	if s.Engaged(5) {
		t.Error("4 messages should not count as engaged at threshold 5")
	}
	s.MessageCount = 5
	if !s.Engaged(5) {
		t.Error("5 messages should count as engaged at threshold 5")
	}
}

func TestRemove(t *testing.T) {
	st := NewStore()
	st.Get("s")
	if !st.Remove("s") {
		t.Error("Remove should report the session existed")
	}
	if st.Remove("s") {
		t.Error("second Remove should report absence")
	}
	if st.Len() != 0 {
		t.Errorf("Len = %d after removal", st.Len())
	}
}

func TestMarkCallbackSent(t *testing.T) {
	st := NewStore()
	st.MarkCallbackSent("s")
	if s := st.Get("s"); !s.CallbackSent {
		t.Error("CallbackSent not recorded")
	}
}

func TestConcurrentAppends(t *testing.T) {
	st := NewStore()
	const goroutines = 32
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			release := st.Acquire("s")
			st.AppendMessage("s", protocol.Message{Sender: protocol.SenderScammer, Text: fmt.Sprintf("m%d", i)})
			release()
		}(i)
	}
	wg.Wait()

	s := st.Get("s")
	if s.MessageCount != goroutines {
		t.Errorf("MessageCount = %d, want %d", s.MessageCount, goroutines)
	}
}

func TestAcquireDifferentSessionsDoNotBlock(t *testing.T) {
	st := NewStore()
	releaseA := st.Acquire("a")
	defer releaseA()

	done := make(chan struct{})
	go func() {
		releaseB := st.Acquire("b")
		releaseB()
		close(done)
	}()
	<-done
}
