package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/arcline/sheetlog/internal/session"
)

type RecordMessageInput struct {
	SessionID string `json:"session_id,omitempty" jsonschema:"Session to append to. Omit to start a new session; the response carries the id to reuse."`
	Role      string `json:"role,omitempty" jsonschema:"Speaker role, user or assistant. Defaults to user."`
	Content   string `json:"content" jsonschema:"The message text to record."`
}

type RecordMessageOutput struct {
	SessionID string `json:"session_id"`
	Turn      int    `json:"turn"`
	Pending   int    `json:"pending"`
}

type SetContactInput struct {
	SessionID     string `json:"session_id,omitempty" jsonschema:"Session the contact number belongs to. Omit to start a new session."`
	ContactNumber string `json:"contact_number" jsonschema:"The user's contact number in any common format."`
}

type SetContactOutput struct {
	SessionID     string `json:"session_id"`
	ContactNumber string `json:"contact_number"`
}

type SaveConversationInput struct {
	SessionID string `json:"session_id" jsonschema:"Session whose buffered messages should be written to the spreadsheet."`
}

type SaveConversationOutput struct {
	SessionID string `json:"session_id"`
	Outcome   string `json:"outcome"`
	Row       int    `json:"row,omitempty"`
}

type ConversationStatusInput struct {
	SessionID string `json:"session_id" jsonschema:"Session to report on."`
}

type ConversationStatusOutput struct {
	SessionID     string `json:"session_id"`
	Email         string `json:"email"`
	ContactNumber string `json:"contact_number,omitempty"`
	Turns         int    `json:"turns"`
	Pending       int    `json:"pending"`
	StartedAt     string `json:"started_at"`
	LastActive    string `json:"last_active"`
}

type EndConversationInput struct {
	SessionID string `json:"session_id" jsonschema:"Session to flush and close."`
}

type EndConversationOutput struct {
	SessionID string `json:"session_id"`
	Outcome   string `json:"outcome"`
	Row       int    `json:"row,omitempty"`
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name:        "record_message",
		Description: "Record one conversation message. Messages buffer per session and are written to the spreadsheet on save, on the autosave schedule, or when the conversation ends.",
	}, s.handleRecordMessage)

	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name:        "set_contact_number",
		Description: "Set the contact number for the session. Required before the conversation can be saved; the number is normalized and, with the account email, identifies the spreadsheet row.",
	}, s.handleSetContact)

	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name:        "save_conversation",
		Description: "Write the session's unsaved messages to the spreadsheet now. Appends to the existing row for this identity, or creates one.",
	}, s.handleSaveConversation)

	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name:        "conversation_status",
		Description: "Report the session's recorded and unsaved message counts, contact number, and activity timestamps.",
	}, s.handleConversationStatus)

	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name:        "end_conversation",
		Description: "Flush the session's remaining messages and close it.",
	}, s.handleEndConversation)
}

func (s *Server) handleRecordMessage(ctx context.Context, _ *sdkmcp.CallToolRequest, input RecordMessageInput) (*sdkmcp.CallToolResult, RecordMessageOutput, error) {
	if input.Content == "" {
		return nil, RecordMessageOutput{}, errors.New("content is required")
	}
	role := input.Role
	if role == "" {
		role = "user"
	}
	if role != "user" && role != "assistant" {
		return nil, RecordMessageOutput{}, fmt.Errorf("unknown role %q, want user or assistant", role)
	}

	status, turn, err := s.sessions.RecordTurn(ctx, input.SessionID, role, input.Content)
	if err != nil {
		return nil, RecordMessageOutput{}, err
	}
	s.logger.Info("message recorded", "session", status.Key, "role", role, "turn", turn.Seq)
	return nil, RecordMessageOutput{SessionID: status.Key, Turn: turn.Seq, Pending: status.Pending}, nil
}

func (s *Server) handleSetContact(ctx context.Context, _ *sdkmcp.CallToolRequest, input SetContactInput) (*sdkmcp.CallToolResult, SetContactOutput, error) {
	status, normalized, err := s.sessions.SetContact(ctx, input.SessionID, input.ContactNumber)
	if err != nil {
		return nil, SetContactOutput{}, err
	}
	s.logger.Info("contact number set", "session", status.Key)
	return nil, SetContactOutput{SessionID: status.Key, ContactNumber: normalized}, nil
}

func (s *Server) handleSaveConversation(ctx context.Context, _ *sdkmcp.CallToolRequest, input SaveConversationInput) (*sdkmcp.CallToolResult, SaveConversationOutput, error) {
	if input.SessionID == "" {
		return nil, SaveConversationOutput{}, errors.New("session_id is required")
	}
	result, err := s.sessions.Flush(ctx, input.SessionID)
	if errors.Is(err, session.ErrNoContact) {
		return nil, SaveConversationOutput{}, fmt.Errorf("cannot save yet: %w; call set_contact_number first", err)
	}
	if err != nil {
		return nil, SaveConversationOutput{}, err
	}
	return nil, SaveConversationOutput{SessionID: input.SessionID, Outcome: string(result.Outcome), Row: result.RowNumber}, nil
}

func (s *Server) handleConversationStatus(ctx context.Context, _ *sdkmcp.CallToolRequest, input ConversationStatusInput) (*sdkmcp.CallToolResult, ConversationStatusOutput, error) {
	if input.SessionID == "" {
		return nil, ConversationStatusOutput{}, errors.New("session_id is required")
	}
	status, ok := s.sessions.Status(ctx, input.SessionID)
	if !ok {
		return nil, ConversationStatusOutput{}, fmt.Errorf("unknown session %q", input.SessionID)
	}
	return nil, ConversationStatusOutput{
		SessionID:     status.Key,
		Email:         status.Email,
		ContactNumber: status.Contact,
		Turns:         status.Turns,
		Pending:       status.Pending,
		StartedAt:     status.StartedAt.Format(time.RFC3339),
		LastActive:    status.LastActive.Format(time.RFC3339),
	}, nil
}

func (s *Server) handleEndConversation(ctx context.Context, _ *sdkmcp.CallToolRequest, input EndConversationInput) (*sdkmcp.CallToolResult, EndConversationOutput, error) {
	if input.SessionID == "" {
		return nil, EndConversationOutput{}, errors.New("session_id is required")
	}
	result, err := s.sessions.End(ctx, input.SessionID)
	if errors.Is(err, session.ErrNoContact) {
		return nil, EndConversationOutput{}, fmt.Errorf("cannot end with unsaved messages: %w; call set_contact_number first", err)
	}
	if err != nil {
		return nil, EndConversationOutput{}, err
	}
	return nil, EndConversationOutput{SessionID: input.SessionID, Outcome: string(result.Outcome), Row: result.RowNumber}, nil
}
