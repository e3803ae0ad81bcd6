package tools

import (
	"context"
	"errors"
	"math"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/shopspring/decimal"

	"github.com/leonardcser/imoney-mcp/internal/currency"
	"github.com/leonardcser/imoney-mcp/internal/i18n"
	"github.com/leonardcser/imoney-mcp/internal/logger"
	"github.com/leonardcser/imoney-mcp/internal/render"
	"github.com/leonardcser/imoney-mcp/internal/session"
)

type handler = func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

// ConvertHandler returns the MCP tool handler for the "convert" tool.
func ConvertHandler(sess *session.Session) handler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if ctx.Err() != nil {
			return mcp.NewToolResultError(ctx.Err().Error()), nil
		}
		lang := sess.Language()
		f := req.GetFloat("amount", session.DefaultAmount.InexactFloat64())
		if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
			return mcp.NewToolResultError(i18n.T(lang, "invalidAmount")), nil
		}
		source := currency.Sanitize(req.GetString("currency", currency.Base))
		if !currency.IsSupported(source) {
			return mcp.NewToolResultError(i18n.T(lang, "unsupportedCurrency")), nil
		}

		rows, err := sess.Convert(ctx, source, decimal.NewFromFloat(f))
		if err != nil {
			if errors.Is(err, session.ErrNoSourceRate) {
				return mcp.NewToolResultError(i18n.T(lang, "noData")), nil
			}
			logger.Errorf("convert: %v", err)
			return mcp.NewToolResultError(render.Error(lang)), nil
		}
		out, err := render.Popup(lang, source, rows)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(out), nil
	}
}

// ListCurrenciesHandler renders the options page.
func ListCurrenciesHandler(sess *session.Session) handler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return options(sess.Language(), sess.Currencies())
	}
}

// AddCurrencyHandler returns the MCP tool handler for the "add-currency" tool.
func AddCurrencyHandler(sess *session.Session) handler {
	return editHandler(sess, sess.AddCurrency)
}

// RemoveCurrencyHandler returns the MCP tool handler for the "remove-currency" tool.
// The base currency stays in place.
func RemoveCurrencyHandler(sess *session.Session) handler {
	return editHandler(sess, sess.RemoveCurrency)
}

func editHandler(sess *session.Session, edit func(context.Context, string) ([]string, error)) handler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if ctx.Err() != nil {
			return mcp.NewToolResultError(ctx.Err().Error()), nil
		}
		code, err := req.RequireString("code")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		list, err := edit(ctx, code)
		if err != nil {
			return mcp.NewToolResultError(i18n.T(sess.Language(), "unsupportedCurrency")), nil
		}
		return options(sess.Language(), list)
	}
}

func options(lang i18n.Language, list []string) (*mcp.CallToolResult, error) {
	out, err := render.Options(lang, list)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(out), nil
}
