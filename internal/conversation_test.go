package internal

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// fakeQuerier answers from a script and records what it was asked
type fakeQuerier struct {
	mu      sync.Mutex
	calls   []QueryRequest
	replies []QueryResponse
	err     error
	gate    chan struct{} // when set, Query blocks until it is closed
	entered chan struct{}
}

func (q *fakeQuerier) Query(ctx context.Context, req QueryRequest) (QueryResponse, error) {
	q.mu.Lock()
	q.calls = append(q.calls, req)
	n := len(q.calls)
	gate, entered := q.gate, q.entered
	q.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	if q.err != nil {
		return QueryResponse{}, q.err
	}
	if n <= len(q.replies) {
		return q.replies[n-1], nil
	}
	return QueryResponse{Answer: "ok"}, nil
}

func (q *fakeQuerier) requests() []QueryRequest {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]QueryRequest(nil), q.calls...)
}

func TestConversation_BlankInputIsIgnored(t *testing.T) {
	q := &fakeQuerier{}
	c := NewConversationController(q)
	before := c.Snapshot()

	for _, input := range []string{"", "   ", "\n\t "} {
		msg, err := c.Send(context.Background(), input)
		if !errors.Is(err, ErrEmptyQuestion) || msg != nil {
			t.Errorf("Send(%q) = %v, %v; want nil, ErrEmptyQuestion", input, msg, err)
		}
	}

	if len(q.requests()) != 0 {
		t.Errorf("blank input made %d requests", len(q.requests()))
	}
	after := c.Snapshot()
	if len(after.Messages) != 0 || after.SessionID != "" || after.ID != before.ID {
		t.Errorf("blank input changed state: %+v", after)
	}
}

func TestConversation_AdoptsAndThreadsSessionID(t *testing.T) {
	q := &fakeQuerier{replies: []QueryResponse{
		{Answer: "Hello!", SessionID: "abc", Sources: []Source{{Name: "guide.pdf"}}},
		{Answer: "Again.", SessionID: "abc"},
		{Answer: "Moved.", SessionID: "def"},
		{Answer: "Kept."},
	}}
	c := NewConversationController(q)

	msg, err := c.Send(context.Background(), "  hi  ")
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if msg.Role != RoleAssistant || msg.Text != "Hello!" || len(msg.Sources) != 1 {
		t.Errorf("reply = %+v", msg)
	}
	if c.SessionID() != "abc" {
		t.Errorf("SessionID() = %q, want abc", c.SessionID())
	}

	for _, question := range []string{"second", "third", "fourth"} {
		if _, err := c.Send(context.Background(), question); err != nil {
			t.Fatalf("Send(%q) error = %v", question, err)
		}
	}

	reqs := q.requests()
	wantSessions := []string{"", "abc", "abc", "def"}
	for i, want := range wantSessions {
		if reqs[i].SessionID != want {
			t.Errorf("request %d session_id = %q, want %q", i, reqs[i].SessionID, want)
		}
	}
	if reqs[0].Question != "hi" {
		t.Errorf("question should be trimmed, got %q", reqs[0].Question)
	}
	if c.SessionID() != "def" {
		t.Errorf("an empty session_id reply should keep the last one, got %q", c.SessionID())
	}

	conv := c.Snapshot()
	if len(conv.Messages) != 8 {
		t.Fatalf("messages = %d, want 8", len(conv.Messages))
	}
	for i, msg := range conv.Messages {
		want := RoleUser
		if i%2 == 1 {
			want = RoleAssistant
		}
		if msg.Role != want {
			t.Errorf("message %d role = %s, want %s", i, msg.Role, want)
		}
	}
}

func TestConversation_FailureAppendsApology(t *testing.T) {
	q := &fakeQuerier{replies: []QueryResponse{{Answer: "first", SessionID: "abc"}}}
	c := NewConversationController(q)
	if _, err := c.Send(context.Background(), "one"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	q.err = &APIError{Status: 500, Detail: "Internal error"}
	msg, err := c.Send(context.Background(), "two")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Send() error = %v, want *APIError", err)
	}
	want := "Sorry, I encountered an error: Internal error. Please try again."
	if msg == nil || msg.Text != want || !msg.Failed {
		t.Errorf("reply = %+v, want failed %q", msg, want)
	}
	if c.SessionID() != "abc" {
		t.Errorf("failure should not touch SessionID, got %q", c.SessionID())
	}

	conv := c.Snapshot()
	if len(conv.Messages) != 4 || conv.Messages[2].Text != "two" {
		t.Errorf("messages = %+v", conv.Messages)
	}
	if c.InFlight() {
		t.Error("send should not stay in flight after a failure")
	}
}

func TestConversation_ResetClearsEverything(t *testing.T) {
	q := &fakeQuerier{replies: []QueryResponse{{Answer: "a", SessionID: "abc"}}}
	c := NewConversationController(q)
	firstID := c.Snapshot().ID

	_, _ = c.Send(context.Background(), "one")
	q.err = errors.New("network down")
	_, _ = c.Send(context.Background(), "two")

	c.Reset()
	conv := c.Snapshot()
	if conv.SessionID != "" || len(conv.Messages) != 0 {
		t.Errorf("after Reset() = %+v", conv)
	}
	if conv.ID == firstID {
		t.Error("Reset() should start a new conversation id")
	}

	c.Reset()
	if len(c.Snapshot().Messages) != 0 {
		t.Error("second Reset() should be a no-op")
	}

	q.err = nil
	q.replies = nil
	if _, err := c.Send(context.Background(), "fresh"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	reqs := q.requests()
	if last := reqs[len(reqs)-1]; last.SessionID != "" {
		t.Errorf("first question after Reset() sent session_id %q", last.SessionID)
	}
}

func TestConversation_RejectsConcurrentSend(t *testing.T) {
	q := &fakeQuerier{gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	c := NewConversationController(q)

	done := make(chan error, 1)
	go func() {
		_, err := c.Send(context.Background(), "slow")
		done <- err
	}()
	<-q.entered

	if !c.InFlight() {
		t.Error("InFlight() should be true while waiting")
	}
	if _, err := c.Send(context.Background(), "impatient"); !errors.Is(err, ErrSendInFlight) {
		t.Errorf("second Send() error = %v, want ErrSendInFlight", err)
	}

	close(q.gate)
	if err := <-done; err != nil {
		t.Fatalf("first Send() error = %v", err)
	}
	if n := len(c.Snapshot().Messages); n != 2 {
		t.Errorf("messages = %d, want 2", n)
	}
}

func TestConversation_LateReplyAfterReset(t *testing.T) {
	q := &fakeQuerier{
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 1),
		replies: []QueryResponse{{Answer: "late", SessionID: "abc"}},
	}
	c := NewConversationController(q)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.Send(context.Background(), "question")
	}()
	<-q.entered

	c.Reset()
	close(q.gate)
	<-done

	conv := c.Snapshot()
	if len(conv.Messages) != 1 || conv.Messages[0].Text != "late" {
		t.Errorf("late reply should land in the reset history, got %+v", conv.Messages)
	}
}

func TestConversation_SnapshotIsDeepCopy(t *testing.T) {
	q := &fakeQuerier{replies: []QueryResponse{{Answer: "a", Sources: []Source{{Name: "x.pdf"}}}}}
	c := NewConversationController(q)
	_, _ = c.Send(context.Background(), "q")

	snap := c.Snapshot()
	snap.Messages[1].Sources[0].Name = "mutated"
	snap.Messages[0].Text = "mutated"

	again := c.Snapshot()
	if again.Messages[1].Sources[0].Name != "x.pdf" || again.Messages[0].Text != "q" {
		t.Error("Snapshot() shares memory with the controller")
	}
}

func TestConversation_Restore(t *testing.T) {
	q := &fakeQuerier{}
	c := NewConversationController(q)

	c.Restore(Conversation{
		ID:        "saved-1",
		SessionID: "abc",
		Messages:  []Message{{Role: RoleUser, Text: "earlier"}, {Role: RoleAssistant, Text: "answer"}},
	})
	if c.SessionID() != "abc" || c.Snapshot().ID != "saved-1" {
		t.Errorf("Restore() = %+v", c.Snapshot())
	}

	if _, err := c.Send(context.Background(), "follow up"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if reqs := q.requests(); reqs[0].SessionID != "abc" {
		t.Errorf("restored session id not threaded, got %q", reqs[0].SessionID)
	}

	c.Restore(Conversation{})
	if c.Snapshot().ID == "" {
		t.Error("Restore() should assign an id when none is saved")
	}
}
