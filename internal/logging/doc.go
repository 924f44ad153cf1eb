// Package logging configures structured slog output for pagesearch.
//
// Interactive commands log warnings to stderr. With --debug, or when serving
// MCP over stdio, JSON logs go to a rotating file under ~/.pagesearch/logs/
// and stdout is never written to.
package logging
