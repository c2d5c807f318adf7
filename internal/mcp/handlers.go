package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/textual/internal/errors"
	"github.com/hpungsan/textual/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	env *ops.Env
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(env *ops.Env) *Handlers {
	return &Handlers{env: env}
}

// Request types for each tool

// TextRedactRequest represents the arguments for text_redact.
type TextRedactRequest struct {
	Text               string              `json:"text,omitempty"`
	Fragments          []string            `json:"fragments,omitempty"`
	Independent        bool                `json:"independent,omitempty"`
	Format             string              `json:"format,omitempty"`
	JSONPathAllowLists map[string][]string `json:"json_path_allow_lists,omitempty"`
	ops.Settings
}

// TextUnredactRequest represents the arguments for text_unredact.
type TextUnredactRequest struct {
	Text       string `json:"text"`
	RandomSeed *int   `json:"random_seed,omitempty"`
}

// CSVRedactRequest represents the arguments for csv_redact.
type CSVRedactRequest struct {
	Path       string `json:"path,omitempty"`
	Content    string `json:"content,omitempty"`
	OutputPath string `json:"output_path,omitempty"`
	TextColumn string `json:"text_column"`
	GroupBy    string `json:"group_by,omitempty"`
	OrderBy    string `json:"order_by,omitempty"`
	NoHeader   bool   `json:"no_header,omitempty"`
	ops.Settings
}

// ConversationRedactRequest represents the arguments for conversation_redact.
type ConversationRedactRequest struct {
	Path      string `json:"path,omitempty"`
	Content   string `json:"content,omitempty"`
	ItemsPath string `json:"items_path,omitempty"`
	TextPath  string `json:"text_path,omitempty"`
	ops.Settings
}

// MarkdownRedactRequest represents the arguments for markdown_redact.
type MarkdownRedactRequest struct {
	Path       string `json:"path,omitempty"`
	Content    string `json:"content,omitempty"`
	OutputPath string `json:"output_path,omitempty"`
	HTML       bool   `json:"html,omitempty"`
	ops.Settings
}

// TranscriptRedactRequest represents the arguments for transcript_redact.
type TranscriptRedactRequest struct {
	Path          string  `json:"path,omitempty"`
	Content       string  `json:"content,omitempty"`
	BeforeSeconds float64 `json:"before_seconds,omitempty"`
	AfterSeconds  float64 `json:"after_seconds,omitempty"`
	ops.Settings
}

// HistoryListRequest represents the arguments for history_list.
type HistoryListRequest struct {
	ID     string `json:"id,omitempty"`
	Kind   string `json:"kind,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// HistoryPurgeRequest represents the arguments for history_purge.
type HistoryPurgeRequest struct {
	OlderThanDays *int `json:"older_than_days,omitempty"`
}

// Handler implementations

// HandleTextRedact handles the text_redact tool call.
func (h *Handlers) HandleTextRedact(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TextRedactRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.RedactText(ctx, h.env, ops.RedactTextInput{
		Text:               input.Text,
		Fragments:          input.Fragments,
		Independent:        input.Independent,
		Format:             input.Format,
		JSONPathAllowLists: input.JSONPathAllowLists,
		Settings:           input.Settings,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleTextUnredact handles the text_unredact tool call.
func (h *Handlers) HandleTextUnredact(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TextUnredactRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Unredact(ctx, h.env, ops.UnredactInput{
		Text:       input.Text,
		RandomSeed: input.RandomSeed,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleCSVRedact handles the csv_redact tool call.
func (h *Handlers) HandleCSVRedact(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CSVRedactRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.RedactCSV(ctx, h.env, ops.RedactCSVInput{
		Path:       input.Path,
		Content:    input.Content,
		OutputPath: input.OutputPath,
		NoHeader:   input.NoHeader,
		TextColumn: input.TextColumn,
		GroupBy:    input.GroupBy,
		OrderBy:    input.OrderBy,
		Settings:   input.Settings,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleConversationRedact handles the conversation_redact tool call.
func (h *Handlers) HandleConversationRedact(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ConversationRedactRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.RedactConversation(ctx, h.env, ops.RedactConversationInput{
		Path:      input.Path,
		Content:   input.Content,
		ItemsPath: input.ItemsPath,
		TextPath:  input.TextPath,
		Settings:  input.Settings,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleMarkdownRedact handles the markdown_redact tool call.
func (h *Handlers) HandleMarkdownRedact(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[MarkdownRedactRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.RedactMarkdown(ctx, h.env, ops.RedactMarkdownInput{
		Path:       input.Path,
		Content:    input.Content,
		OutputPath: input.OutputPath,
		HTML:       input.HTML,
		Settings:   input.Settings,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleTranscriptRedact handles the transcript_redact tool call.
func (h *Handlers) HandleTranscriptRedact(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TranscriptRedactRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.RedactTranscript(ctx, h.env, ops.RedactTranscriptInput{
		Path:          input.Path,
		Content:       input.Content,
		BeforeSeconds: input.BeforeSeconds,
		AfterSeconds:  input.AfterSeconds,
		Settings:      input.Settings,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleHistoryList handles the history_list tool call.
func (h *Handlers) HandleHistoryList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[HistoryListRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.History(ctx, h.env, ops.HistoryInput{
		ID:     input.ID,
		Kind:   input.Kind,
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleHistoryPurge handles the history_purge tool call.
func (h *Handlers) HandleHistoryPurge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[HistoryPurgeRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.PurgeHistory(ctx, h.env, ops.PurgeHistoryInput{
		OlderThanDays: input.OlderThanDays,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are not exposed to prevent leaking sensitive info.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var tErr *errors.TextualError
	if stderrors.As(err, &tErr) {
		message := tErr.Message
		// Keep context added by wrapping, e.g. "group 2: ..."
		if outer := err.Error(); outer != tErr.Error() {
			message = strings.TrimSuffix(outer, tErr.Error()) + tErr.Message
		}
		errorObj := map[string]any{
			"code":    tErr.Code,
			"message": message,
			"status":  tErr.Status,
		}
		// Only include details for non-internal errors to avoid leaking
		// sensitive info like file paths or SQL errors
		if tErr.Code != errors.ErrInternal && tErr.Details != nil {
			errorObj["details"] = tErr.Details
		}
		if tErr.Code == errors.ErrInternal {
			errorObj["message"] = "an internal error occurred"
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
