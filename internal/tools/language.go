package tools

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/leonardcser/imoney-mcp/internal/i18n"
	"github.com/leonardcser/imoney-mcp/internal/session"
)

// SetLanguageHandler returns the MCP tool handler for the "set-language" tool.
func SetLanguageHandler(sess *session.Session) handler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		v, err := req.RequireString("language")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := sess.SetLanguage(ctx, i18n.Language(strings.ToLower(strings.TrimSpace(v)))); err != nil {
			return mcp.NewToolResultError(i18n.T(sess.Language(), "invalidLanguage")), nil
		}
		return mcp.NewToolResultText(i18n.T(sess.Language(), "languageChanged")), nil
	}
}

// ToggleLanguageHandler switches between English and Chinese.
func ToggleLanguageHandler(sess *session.Session) handler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		lang, err := sess.ToggleLanguage(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(i18n.T(lang, "languageChanged")), nil
	}
}
