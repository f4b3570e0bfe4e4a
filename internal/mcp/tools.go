package mcp

import "github.com/mark3labs/mcp-go/mcp"

var listToolDef = mcp.NewTool("candidate_list",
	mcp.WithDescription("List task candidates newest first, optionally filtered by status."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithString("status",
		mcp.Description("Only candidates in this status."),
		mcp.Enum("drafted", "created", "skipped"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of candidates (default 20, max 300)."),
	),
)

var getToolDef = mcp.NewTool("candidate_get",
	mcp.WithDescription("Fetch one task candidate by id, including its raw message text."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithString("candidate_id",
		mcp.Required(),
		mcp.Description("Candidate id as shown in candidate_list."),
	),
)

var classifyToolDef = mcp.NewTool("message_classify",
	mcp.WithDescription("Run the importance classifier and draft extractor on a message without storing anything."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithString("text",
		mcp.Description("Message text or caption."),
	),
	mcp.WithBoolean("is_voice",
		mcp.Description("Treat the message as a voice message."),
	),
	mcp.WithString("now",
		mcp.Description("Reference time (RFC 3339) for due-date extraction. Defaults to the current time."),
	),
)
