// Package mcp exposes the conversation recorder as an MCP tool server,
// speaking stdio for local hosts and streamable HTTP for remote ones.
package mcp

import (
	"context"
	"log/slog"
	"net/http"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/arcline/sheetlog/internal/ledger"
	"github.com/arcline/sheetlog/internal/session"
)

// Sessions is the slice of the session manager the tools act on.
type Sessions interface {
	RecordTurn(ctx context.Context, key, role, content string) (session.Status, session.Turn, error)
	SetContact(ctx context.Context, key, raw string) (session.Status, string, error)
	Flush(ctx context.Context, key string) (ledger.Result, error)
	Status(ctx context.Context, key string) (session.Status, bool)
	End(ctx context.Context, key string) (ledger.Result, error)
}

type Server struct {
	server   *sdkmcp.Server
	sessions Sessions
	logger   *slog.Logger
}

func NewServer(sessions Sessions, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		server:   sdkmcp.NewServer(&sdkmcp.Implementation{Name: "sheetlog", Version: version}, nil),
		sessions: sessions,
		logger:   logger,
	}
	s.registerTools()
	return s
}

// Run serves MCP over stdio until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("mcp server listening on stdio")
	return s.server.Run(ctx, &sdkmcp.StdioTransport{})
}

// HTTPHandler returns the streamable HTTP transport for the same server.
func (s *Server) HTTPHandler() http.Handler {
	return sdkmcp.NewStreamableHTTPHandler(func(*http.Request) *sdkmcp.Server { return s.server }, nil)
}
