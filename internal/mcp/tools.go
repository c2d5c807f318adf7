package mcp

import "github.com/mark3labs/mcp-go/mcp"

// settingsOptions are the redaction settings every redact tool accepts.
func settingsOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("generator_default",
			mcp.Description("Treatment for entity types not in generator_config"),
			mcp.Enum("Redaction", "Synthesis", "Off"),
		),
		mcp.WithObject("generator_config",
			mcp.Description("Entity type to Redaction, Synthesis or Off, e.g. {\"NAME_GIVEN\": \"Synthesis\"}"),
		),
		mcp.WithArray("custom_entities",
			mcp.Description("Custom entity types to detect"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithObject("label_allow_lists",
			mcp.Description("Entity type to regexes whose matches are always that type"),
		),
		mcp.WithObject("label_block_lists",
			mcp.Description("Entity type to regexes whose matches are never that type"),
		),
		mcp.WithNumber("random_seed",
			mcp.Description("Seed for reproducible synthesized values"),
		),
		mcp.WithString("new_span_policy",
			mcp.Description("How replacement positions are reported for grouped inputs"),
			mcp.Enum("redacted", "anchored"),
		),
		mcp.WithNumber("retention_hours",
			mcp.Description("Ask the service to record the request for 1 to 720 hours"),
		),
	}
}

func redactTool(name, description string, opts ...mcp.ToolOption) mcp.Tool {
	all := append([]mcp.ToolOption{mcp.WithDescription(description)}, opts...)
	all = append(all, settingsOptions()...)
	return mcp.NewTool(name, all...)
}

var textRedactToolDef = redactTool("text_redact",
	"Redact sensitive entities in a text, a JSON/XML/HTML document, or a list of fragments. "+
		"Fragments are redacted together so names split across fragments are found.",
	mcp.WithString("text",
		mcp.Description("Text or document to redact"),
	),
	mcp.WithArray("fragments",
		mcp.Description("Ordered fragments redacted as one text; one result per fragment"),
		mcp.Items(map[string]any{"type": "string"}),
	),
	mcp.WithBoolean("independent",
		mcp.Description("Redact fragments separately in one bulk request"),
	),
	mcp.WithString("format",
		mcp.Description("Format of text"),
		mcp.Enum("text", "json", "xml", "html"),
	),
	mcp.WithObject("json_path_allow_lists",
		mcp.Description("Entity type to JSONPath expressions whose values are always that type (format json)"),
	),
)

var textUnredactToolDef = mcp.NewTool("text_unredact",
	mcp.WithDescription("Restore the original values in a text redacted by the service"),
	mcp.WithString("text",
		mcp.Required(),
		mcp.Description("Redacted text"),
	),
	mcp.WithNumber("random_seed",
		mcp.Description("Seed used when the text was synthesized"),
	),
)

var csvRedactToolDef = redactTool("csv_redact",
	"Redact one text column of a CSV. Rows sharing group_by are redacted together in order_by order.",
	mcp.WithString("path",
		mcp.Description("CSV file (must be in ~/.textual/files or allowed_paths)"),
	),
	mcp.WithString("content",
		mcp.Description("Inline CSV"),
	),
	mcp.WithString("output_path",
		mcp.Description("Where to write the redacted CSV; returned inline when omitted"),
	),
	mcp.WithString("text_column",
		mcp.Required(),
		mcp.Description("Column holding the text to redact"),
	),
	mcp.WithString("group_by",
		mcp.Description("Column whose equal values form one group"),
	),
	mcp.WithString("order_by",
		mcp.Description("Integer column ordering rows inside a group"),
	),
	mcp.WithBoolean("no_header",
		mcp.Description("First row is data; columns are named 0, 1, ..."),
	),
)

var conversationRedactToolDef = redactTool("conversation_redact",
	"Redact every message of a JSON conversation in one call",
	mcp.WithString("path",
		mcp.Description("JSON file (must be in ~/.textual/files or allowed_paths)"),
	),
	mcp.WithString("content",
		mcp.Description("Inline JSON"),
	),
	mcp.WithString("items_path",
		mcp.Description("Path to the message array (default: messages)"),
	),
	mcp.WithString("text_path",
		mcp.Description("Path to the text inside a message (default: content; \".\" for string messages)"),
	),
)

var markdownRedactToolDef = redactTool("markdown_redact",
	"Redact the prose of a markdown document. Code blocks and raw HTML are kept as is.",
	mcp.WithString("path",
		mcp.Description("Markdown file (must be in ~/.textual/files or allowed_paths)"),
	),
	mcp.WithString("content",
		mcp.Description("Inline markdown"),
	),
	mcp.WithString("output_path",
		mcp.Description("Where to write the result; an .html path receives rendered HTML"),
	),
	mcp.WithBoolean("html",
		mcp.Description("Also return the redacted document rendered as HTML"),
	),
)

var transcriptRedactToolDef = redactTool("transcript_redact",
	"Redact a word-timed transcription and return the audio intervals that contain sensitive entities",
	mcp.WithString("path",
		mcp.Description("Transcription JSON file (must be in ~/.textual/files or allowed_paths)"),
	),
	mcp.WithString("content",
		mcp.Description("Inline transcription JSON with segments and words"),
	),
	mcp.WithNumber("before_seconds",
		mcp.Description("Widen each interval this many seconds earlier"),
	),
	mcp.WithNumber("after_seconds",
		mcp.Description("Widen each interval this many seconds later"),
	),
)

var historyListToolDef = mcp.NewTool("history_list",
	mcp.WithDescription("List journaled redaction runs, newest first. Runs record counts and labels, never text."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithString("id",
		mcp.Description("Return only this run"),
	),
	mcp.WithString("kind",
		mcp.Description("Filter by run kind"),
		mcp.Enum("text", "csv", "conversation", "markdown", "transcript", "unredact"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Max runs to return (default 20, max 100)"),
	),
	mcp.WithNumber("offset",
		mcp.Description("Runs to skip"),
	),
)

var historyPurgeToolDef = mcp.NewTool("history_purge",
	mcp.WithDescription("Permanently delete journaled runs"),
	mcp.WithDestructiveHintAnnotation(true),
	mcp.WithNumber("older_than_days",
		mcp.Description("Only delete runs recorded more than this many days ago"),
	),
)
