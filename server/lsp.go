package server

import (
	"net/url"
	"path/filepath"
	"strings"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/lotus/compiler/diag"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "lotus-lsp"

// LspServer bridges LSP editor features to Commands. Open documents are
// kept in the file cache, so every request compiles against the unsaved
// text.
type LspServer struct {
	commands *Commands

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a language server over commands.
func NewLSP(commands *Commands) *LspServer {
	s := &LspServer{
		commands: commands,
		version:  "0.1.0",
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	commonlog.NewInfoMessage(0, "Lotus LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}
	capabilities.CompletionProvider = &protocol.CompletionOptions{}
	capabilities.HoverProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	s.commands.Stop()
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	text := params.TextDocument.Text
	s.publishDiagnostics(ctx, params.TextDocument.URI, &text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			text := whole.Text
			s.publishDiagnostics(ctx, params.TextDocument.URI, &text)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI
	s.commands.Cache.Delete(uriToPath(uri))

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	resp, ok := s.request(KindCompletion, params.TextDocument.URI, params.Position)
	if !ok || len(resp.Lines) == 0 {
		return nil, nil
	}
	items := make([]protocol.CompletionItem, len(resp.Lines))
	for i, name := range resp.Lines {
		items[i] = protocol.CompletionItem{Label: name}
	}
	return items, nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	resp, ok := s.request(KindHover, params.TextDocument.URI, params.Position)
	if !ok || len(resp.Lines) == 0 {
		return nil, nil
	}
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: "```\n" + strings.Join(resp.Lines, "\n") + "\n```",
		},
	}, nil
}

// request runs a position-based command. Failures are logged and reported
// to the editor as an empty answer.
func (s *LspServer) request(kind Kind, uri protocol.DocumentUri, pos protocol.Position) (Response, bool) {
	path := uriToPath(uri)
	text, err := s.commands.Cache.Get(path)
	if err != nil {
		return Response{}, false
	}
	resp, err := s.commands.Handle(Request{
		Kind:   kind,
		Path:   path,
		Offset: offsetOf(text, pos),
	})
	if err != nil {
		log.Errorf("%s %s: %s", kind, path, err.Error())
		return Response{}, false
	}
	return resp, true
}

// --- Diagnostics ---

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text *string) {
	resp, err := s.commands.Handle(Request{
		Kind:    KindDiagnostics,
		Path:    uriToPath(uri),
		Content: text,
	})
	if err != nil {
		log.Errorf("diagnostics %s: %s", uri, err.Error())
		return
	}

	diagnostics := make([]protocol.Diagnostic, 0, len(resp.Diagnostics))
	for _, d := range resp.Diagnostics {
		diagnostics = append(diagnostics, toProtocol(d, *text))
	}

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// toProtocol converts a diagnostic, spanning the identifier it points at.
func toProtocol(d diag.Diagnostic, text string) protocol.Diagnostic {
	severity := protocol.DiagnosticSeverityError
	source := lspName
	code := d.Kind.String()
	start := protocol.Position{
		Line:      protocol.UInteger(max(d.Pos.Line-1, 0)),
		Character: protocol.UInteger(max(d.Pos.Column-1, 0)),
	}
	end := start
	end.Character += protocol.UInteger(len(wordAt(text, d.Pos.Offset)))
	return protocol.Diagnostic{
		Range:    protocol.Range{Start: start, End: end},
		Severity: &severity,
		Code:     &protocol.IntegerOrString{Value: code},
		Source:   &source,
		Message:  d.Message,
	}
}

// --- Text extraction helpers ---

// offsetOf converts an editor position to a byte offset in text, clamped
// to the end of its line.
func offsetOf(text string, pos protocol.Position) int {
	offset := 0
	for line := protocol.UInteger(0); line < pos.Line; line++ {
		i := strings.IndexByte(text[offset:], '\n')
		if i < 0 {
			return len(text)
		}
		offset += i + 1
	}
	lineEnd := strings.IndexByte(text[offset:], '\n')
	if lineEnd < 0 {
		lineEnd = len(text) - offset
	}
	return offset + min(int(pos.Character), lineEnd)
}

// uriToPath maps a file URI to a local path. Anything else is used as is.
func uriToPath(uri protocol.DocumentUri) string {
	u, err := url.Parse(string(uri))
	if err != nil || u.Scheme != "file" {
		return string(uri)
	}
	return filepath.FromSlash(u.Path)
}

func boolPtr(b bool) *bool {
	return &b
}
