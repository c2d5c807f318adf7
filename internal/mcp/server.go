package mcp

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/hpungsan/textual/internal/logger"
	"github.com/hpungsan/textual/internal/ops"
)

// KnownTypes lists all valid type names. A tool's type is the part of its
// name before the first underscore.
var KnownTypes = []string{"text", "csv", "conversation", "markdown", "transcript", "history"}

type handlerMethod func(*Handlers, context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

// tools is the full tool set in registration order.
var tools = []struct {
	def    mcp.Tool
	handle handlerMethod
}{
	{textRedactToolDef, (*Handlers).HandleTextRedact},
	{textUnredactToolDef, (*Handlers).HandleTextUnredact},
	{csvRedactToolDef, (*Handlers).HandleCSVRedact},
	{conversationRedactToolDef, (*Handlers).HandleConversationRedact},
	{markdownRedactToolDef, (*Handlers).HandleMarkdownRedact},
	{transcriptRedactToolDef, (*Handlers).HandleTranscriptRedact},
	{historyListToolDef, (*Handlers).HandleHistoryList},
	{historyPurgeToolDef, (*Handlers).HandleHistoryPurge},
}

// AllToolNames returns every tool name in registration order.
func AllToolNames() []string {
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.def.Name
	}
	return names
}

// ValidateDisabledTools returns the entries of names that are not tools.
func ValidateDisabledTools(names []string) []string {
	return unknownNames(names, AllToolNames())
}

// ValidateDisabledTypes returns the entries of names that are not types.
func ValidateDisabledTypes(names []string) []string {
	return unknownNames(names, KnownTypes)
}

func unknownNames(names, known []string) []string {
	unknown := []string{}
	for _, n := range names {
		if !slices.Contains(known, n) {
			unknown = append(unknown, n)
		}
	}
	return unknown
}

// GetTypeForTool returns the type prefix of a tool name ("csv_redact" is
// "csv"), or "" when the name has none.
func GetTypeForTool(toolName string) string {
	typ, _, found := strings.Cut(toolName, "_")
	if !found {
		return ""
	}
	return typ
}

// enabled reports whether a tool survives disabled_tools and disabled_types.
func enabled(env *ops.Env, name string) bool {
	if env.Cfg == nil {
		return true
	}
	return !slices.Contains(env.Cfg.DisabledTools, name) &&
		!slices.Contains(env.Cfg.DisabledTypes, GetTypeForTool(name))
}

// NewServer builds the MCP server with every enabled tool registered.
func NewServer(env *ops.Env, version string) *server.MCPServer {
	log := env.Log
	if log == nil {
		log = logger.NewNop()
	}

	s := server.NewMCPServer("textual", version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithToolHandlerMiddleware(logCalls(log)),
	)

	h := NewHandlers(env)
	for _, t := range tools {
		if !enabled(env, t.def.Name) {
			log.Debug("tool disabled", zap.String("tool", t.def.Name))
			continue
		}
		s.AddTool(t.def, bind(h, t.handle))
	}
	return s
}

func bind(h *Handlers, m handlerMethod) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return m(h, ctx, req)
	}
}

// logCalls records each tool call's name, outcome and duration. Arguments
// are never logged since they carry the text being redacted.
func logCalls(log *logger.Logger) server.ToolHandlerMiddleware {
	return func(next server.ToolHandlerFunc) server.ToolHandlerFunc {
		return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			start := time.Now()
			res, err := next(ctx, req)
			fields := []zap.Field{
				zap.String("tool", req.Params.Name),
				zap.Duration("elapsed", time.Since(start)),
			}
			switch {
			case err != nil:
				log.Error("tool call failed", append(fields, zap.Error(err))...)
			case res != nil && res.IsError:
				log.Info("tool call returned error", fields...)
			default:
				log.Debug("tool call", fields...)
			}
			return res, err
		}
	}
}

// Run serves the MCP server over stdio until stdin closes.
func Run(env *ops.Env, version string) error {
	return server.ServeStdio(NewServer(env, version))
}
