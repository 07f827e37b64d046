// Package mcp exposes the supervisor as Model Context Protocol tools over
// stdio, using github.com/modelcontextprotocol/go-sdk/mcp.
//
// Tools:
//
//	portfolio_ask         one conversational turn, with optional prior slots
//	portfolio_properties  the property catalog, optionally filtered
//	portfolio_dataset     summary of the loaded ledger
//	tool_search           find tools by name, description, or keyword
//	tool_list             list registered tools
//
// Stdout carries the protocol, so callers must send logs to stderr.
package mcp
