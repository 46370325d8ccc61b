package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/duaneharrison1/heysheetsmvp-sub003/internal/executor"
)

// FunctionRunner executes one named store function. Implemented by
// executor.Executor, so agent clients get exactly the widget's behavior.
type FunctionRunner interface {
	Execute(ctx context.Context, storeID, function string, params map[string]any) executor.Result
}

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Executor FunctionRunner
}

// NewMCPServer creates an MCP server exposing the store functions as tools.
// Every tool requires store_id; the backend is multi-tenant and a tool call
// without a store is meaningless.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"heysheets",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("heysheets — storefront assistant over a spreadsheet backend: store info, availability, bookings, and products."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("get_store_info",
			mcp.WithDescription("Fetch a store's published details: opening hours, services, and products."),
			mcp.WithString("store_id", mcp.Description("Store identifier"), mcp.Required()),
			mcp.WithString("info_type", mcp.Description(`One of "hours", "services", "products", "all" (default "all")`)),
		),
		mcpStoreInfo(deps),
	)

	s.AddTool(
		mcp.NewTool("check_availability",
			mcp.WithDescription("List the open time slots for a service on a date."),
			mcp.WithString("store_id", mcp.Description("Store identifier"), mcp.Required()),
			mcp.WithString("service_name", mcp.Description("Service to check"), mcp.Required()),
			mcp.WithString("date", mcp.Description("Date in YYYY-MM-DD"), mcp.Required()),
		),
		mcpCheckAvailability(deps),
	)

	s.AddTool(
		mcp.NewTool("create_booking",
			mcp.WithDescription("Book a service for a customer at an open time slot."),
			mcp.WithString("store_id", mcp.Description("Store identifier"), mcp.Required()),
			mcp.WithString("service_name", mcp.Description("Service to book"), mcp.Required()),
			mcp.WithString("date", mcp.Description("Date in YYYY-MM-DD"), mcp.Required()),
			mcp.WithString("time", mcp.Description("Time slot in HH:MM"), mcp.Required()),
			mcp.WithString("customer_name", mcp.Description("Customer's full name"), mcp.Required()),
			mcp.WithString("customer_email", mcp.Description("Customer's email address"), mcp.Required()),
			mcp.WithString("customer_phone", mcp.Description("Customer's phone number")),
		),
		mcpCreateBooking(deps),
	)

	s.AddTool(
		mcp.NewTool("get_products",
			mcp.WithDescription("List the store's products, optionally filtered by category."),
			mcp.WithString("store_id", mcp.Description("Store identifier"), mcp.Required()),
			mcp.WithString("category", mcp.Description("Category filter (case-insensitive)")),
		),
		mcpGetProducts(deps),
	)

	return s
}

func mcpStoreInfo(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		storeID, err := req.RequireString("store_id")
		if err != nil {
			return mcpError("store_id is required"), nil
		}
		params := map[string]any{}
		if infoType := req.GetString("info_type", ""); infoType != "" {
			params["info_type"] = infoType
		}
		return mcpResult(deps.Executor.Execute(ctx, storeID, "get_store_info", params)), nil
	}
}

func mcpCheckAvailability(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		storeID, err := req.RequireString("store_id")
		if err != nil {
			return mcpError("store_id is required"), nil
		}
		params := map[string]any{
			"service_name": req.GetString("service_name", ""),
			"date":         req.GetString("date", ""),
		}
		return mcpResult(deps.Executor.Execute(ctx, storeID, "check_availability", params)), nil
	}
}

func mcpCreateBooking(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		storeID, err := req.RequireString("store_id")
		if err != nil {
			return mcpError("store_id is required"), nil
		}
		params := map[string]any{
			"service_name":   req.GetString("service_name", ""),
			"date":           req.GetString("date", ""),
			"time":           req.GetString("time", ""),
			"customer_name":  req.GetString("customer_name", ""),
			"customer_email": req.GetString("customer_email", ""),
			"customer_phone": req.GetString("customer_phone", ""),
		}
		return mcpResult(deps.Executor.Execute(ctx, storeID, "create_booking", params)), nil
	}
}

func mcpGetProducts(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		storeID, err := req.RequireString("store_id")
		if err != nil {
			return mcpError("store_id is required"), nil
		}
		params := map[string]any{}
		if category := req.GetString("category", ""); category != "" {
			params["category"] = category
		}
		return mcpResult(deps.Executor.Execute(ctx, storeID, "get_products", params)), nil
	}
}

// mcpResult renders an execution result for an agent client: data as JSON on
// success, the short failure message otherwise.
func mcpResult(res executor.Result) *mcp.CallToolResult {
	if !res.Success {
		return mcpError(res.Error)
	}
	b, err := json.Marshal(res.Data)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err))
	}
	return mcpText(string(b))
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
