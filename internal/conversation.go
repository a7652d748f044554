package internal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrSendInFlight is returned when a question is sent while the previous
// one is still being answered.
var ErrSendInFlight = errors.New("a question is already being answered")

// ErrEmptyQuestion is returned by Send for blank input. Nothing is sent and
// the conversation is left unchanged.
var ErrEmptyQuestion = errors.New("question must not be empty")

// Querier answers a question within an optional server-side session
type Querier interface {
	Query(ctx context.Context, req QueryRequest) (QueryResponse, error)
}

// ConversationController owns the visible transcript and the server session
// id that threads follow-up questions together.
type ConversationController struct {
	mu       sync.Mutex
	querier  Querier
	conv     Conversation
	inFlight bool
	now      func() time.Time
}

// NewConversationController starts an empty conversation
func NewConversationController(querier Querier) *ConversationController {
	c := &ConversationController{querier: querier, now: time.Now}
	c.conv = c.fresh()
	return c
}

func (c *ConversationController) fresh() Conversation {
	now := c.now()
	return Conversation{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now}
}

// Send asks question and returns the assistant reply. Blank input returns
// ErrEmptyQuestion and a nil message. On any other failure an apology is
// appended to the transcript and returned with the error; the session id is
// left untouched.
func (c *ConversationController) Send(ctx context.Context, question string) (*Message, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	sessionID, err := c.appendUser(question)
	if err != nil {
		return nil, err
	}

	LogDebug("Sending question (session=%q)", sessionID)
	resp, err := c.querier.Query(ctx, QueryRequest{Question: question, SessionID: sessionID})
	reply := c.appendReply(resp, err)
	return &reply, err
}

// appendUser records the question and marks a send in flight
func (c *ConversationController) appendUser(question string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inFlight {
		return "", ErrSendInFlight
	}
	c.inFlight = true
	c.conv.Messages = append(c.conv.Messages, Message{
		Role:      RoleUser,
		Text:      question,
		Timestamp: c.now(),
	})
	c.conv.UpdatedAt = c.now()
	return c.conv.SessionID, nil
}

// appendReply records the outcome of the outstanding send
func (c *ConversationController) appendReply(resp QueryResponse, err error) Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.inFlight = false
	reply := Message{Role: RoleAssistant, Timestamp: c.now()}
	if err != nil {
		reply.Text = fmt.Sprintf("Sorry, I encountered an error: %v. Please try again.", err)
		reply.Failed = true
	} else {
		if resp.SessionID != "" {
			c.conv.SessionID = resp.SessionID
		}
		reply.Text = resp.Answer
		reply.Sources = append([]Source(nil), resp.Sources...)
	}
	c.conv.Messages = append(c.conv.Messages, reply)
	c.conv.UpdatedAt = reply.Timestamp
	return reply
}

// Reset starts a new conversation. A reply still in flight lands in the new one.
func (c *ConversationController) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conv = c.fresh()
}

// SessionID returns the server session id, empty before the first answer
func (c *ConversationController) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conv.SessionID
}

// InFlight reports whether a send is awaiting its reply
func (c *ConversationController) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// Snapshot returns a deep copy of the conversation
func (c *ConversationController) Snapshot() Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneConversation(c.conv)
}

// Restore replaces the conversation with a previously saved one
func (c *ConversationController) Restore(conv Conversation) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conv = cloneConversation(conv)
	if c.conv.ID == "" {
		c.conv.ID = uuid.NewString()
	}
}

func cloneConversation(conv Conversation) Conversation {
	out := conv
	out.Messages = make([]Message, len(conv.Messages))
	for i, msg := range conv.Messages {
		msg.Sources = append([]Source(nil), msg.Sources...)
		out.Messages[i] = msg
	}
	return out
}
