package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/iksnae/rag-client/internal"
)

// JSONLExporter exports conversations in JSONL format (one message per line)
type JSONLExporter struct{}

type jsonlLine struct {
	ConversationID string   `json:"conversation_id"`
	SessionID      string   `json:"session_id,omitempty"`
	Role           string   `json:"role"`
	Text           string   `json:"text"`
	Sources        []string `json:"sources,omitempty"`
	Timestamp      string   `json:"timestamp,omitempty"`
	Failed         bool     `json:"failed,omitempty"`
}

// Export exports a conversation to JSONL format
func (e *JSONLExporter) Export(conv *internal.Conversation, w io.Writer) error {
	enc := json.NewEncoder(w)

	for _, msg := range conv.Messages {
		line := jsonlLine{
			ConversationID: conv.ID,
			SessionID:      conv.SessionID,
			Role:           string(msg.Role),
			Text:           msg.Text,
			Failed:         msg.Failed,
		}
		if len(msg.Sources) > 0 {
			line.Sources = msg.SourceNames()
		}
		if !msg.Timestamp.IsZero() {
			line.Timestamp = msg.Timestamp.UTC().Format(time.RFC3339)
		}

		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("failed to encode message: %w", err)
		}
	}

	return nil
}

// Extension returns the file extension for this format
func (e *JSONLExporter) Extension() string {
	return "jsonl"
}
