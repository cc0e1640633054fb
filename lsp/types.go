// Package lsp defines the subset of language-server-protocol payloads that
// the bundled Features exchange. It is intentionally small; Features for
// other methods can define their own payload types.
package lsp

import (
	"encoding/json"
	"strings"
)

// DocumentURI identifies a text document.
type DocumentURI string

// Position is a zero-based line / UTF-16 character offset.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is a half-open span between two positions.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Selection is a user selection; Anchor is where it started and Active where
// the cursor currently is.
type Selection struct {
	Anchor Position `json:"anchor"`
	Active Position `json:"active"`
}

// TextDocumentIdentifier names a document.
type TextDocumentIdentifier struct {
	URI DocumentURI `json:"uri"`
}

// TextDocumentItem describes an open document.
type TextDocumentItem struct {
	URI        DocumentURI `json:"uri"`
	LanguageID string      `json:"languageId"`
	Version    int         `json:"version,omitempty"`
	Text       string      `json:"text,omitempty"`
}

// TextDocumentPositionParams addresses a position within a document.
type TextDocumentPositionParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Position     Position               `json:"position"`
}

// DocumentFilter selects documents by language, scheme or glob pattern.
type DocumentFilter struct {
	Language string `json:"language,omitempty" yaml:"language"`
	Scheme   string `json:"scheme,omitempty" yaml:"scheme"`
	Pattern  string `json:"pattern,omitempty" yaml:"pattern"`
}

// DocumentSelector is a set of filters; a document matches if any filter does.
type DocumentSelector []DocumentFilter

// Matches reports whether doc is selected. An empty selector matches
// everything. Patterns are not evaluated here; a filter with only a pattern
// matches every document.
func (s DocumentSelector) Matches(doc TextDocumentItem) bool {
	if len(s) == 0 {
		return true
	}
	scheme := ""
	if i := strings.Index(string(doc.URI), ":"); i > 0 {
		scheme = string(doc.URI[:i])
	}
	for _, f := range s {
		if f.Language != "" && f.Language != doc.LanguageID {
			continue
		}
		if f.Scheme != "" && f.Scheme != scheme {
			continue
		}
		return true
	}
	return false
}

// DidOpenTextDocumentParams is the payload of textDocument/didOpen.
type DidOpenTextDocumentParams struct {
	TextDocument TextDocumentItem `json:"textDocument"`
}

// DidCloseTextDocumentParams is the payload of textDocument/didClose.
type DidCloseTextDocumentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

// HoverParams is the payload of textDocument/hover.
type HoverParams = TextDocumentPositionParams

// Hover is the result of textDocument/hover. Contents is kept raw because
// servers answer with a string, a MarkedString, an array of those, or
// MarkupContent.
type Hover struct {
	Contents json.RawMessage `json:"contents"`
	Range    *Range          `json:"range,omitempty"`
}

// Text flattens Contents into plain text, joining multiple parts with blank
// lines.
func (h *Hover) Text() string {
	if h == nil {
		return ""
	}
	return markedText(h.Contents)
}

func markedText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var parts []json.RawMessage
	if err := json.Unmarshal(raw, &parts); err == nil {
		texts := make([]string, 0, len(parts))
		for _, p := range parts {
			if t := markedText(p); t != "" {
				texts = append(texts, t)
			}
		}
		return strings.Join(texts, "\n\n")
	}
	var obj struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Value
	}
	return ""
}

// TextDocumentDecorationsParams is the payload of textDocument/decorations.
type TextDocumentDecorationsParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

// DecorationAttachment is content rendered after a decorated range.
type DecorationAttachment struct {
	ContentText     string `json:"contentText,omitempty"`
	HoverMessage    string `json:"hoverMessage,omitempty"`
	LinkURL         string `json:"linkURL,omitempty"`
	Color           string `json:"color,omitempty"`
	BackgroundColor string `json:"backgroundColor,omitempty"`
}

// TextDocumentDecoration styles a range of a document.
type TextDocumentDecoration struct {
	Range           Range                 `json:"range"`
	IsWholeLine     bool                  `json:"isWholeLine,omitempty"`
	BackgroundColor string                `json:"backgroundColor,omitempty"`
	After           *DecorationAttachment `json:"after,omitempty"`
}

// PublishDecorationsParams is the payload of a peer-initiated
// textDocument/publishDecorations push.
type PublishDecorationsParams struct {
	TextDocument TextDocumentIdentifier   `json:"textDocument"`
	Decorations  []TextDocumentDecoration `json:"decorations"`
}

// FileChangeType is the kind of a watched file event.
type FileChangeType int

const (
	FileCreated FileChangeType = 1
	FileChanged FileChangeType = 2
	FileDeleted FileChangeType = 3
)

// FileEvent describes one change to a watched file.
type FileEvent struct {
	URI  DocumentURI    `json:"uri"`
	Type FileChangeType `json:"type"`
}

// DidChangeWatchedFilesParams is the payload of workspace/didChangeWatchedFiles.
type DidChangeWatchedFilesParams struct {
	Changes []FileEvent `json:"changes"`
}

// ConfigurationItem asks for one configuration section.
type ConfigurationItem struct {
	ScopeURI DocumentURI `json:"scopeUri,omitempty"`
	Section  string      `json:"section,omitempty"`
}

// ConfigurationParams is the payload of workspace/configuration.
type ConfigurationParams struct {
	Items []ConfigurationItem `json:"items"`
}

// MessageType is the severity of window messages.
type MessageType int

const (
	MessageError   MessageType = 1
	MessageWarning MessageType = 2
	MessageInfo    MessageType = 3
	MessageLog     MessageType = 4
)

// LogMessageParams is the payload of window/logMessage and window/showMessage.
type LogMessageParams struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

// ClientInfo identifies the client to the server.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// InitializeParams is the payload of initialize.
type InitializeParams struct {
	ProcessID             *int            `json:"processId"`
	RootURI               DocumentURI     `json:"rootUri"`
	InitializationOptions any             `json:"initializationOptions,omitempty"`
	Capabilities          json.RawMessage `json:"capabilities"`
	ClientInfo            *ClientInfo     `json:"clientInfo,omitempty"`
}

// InitializeResult is the result of initialize.
type InitializeResult struct {
	Capabilities json.RawMessage `json:"capabilities"`
	ServerInfo   *ClientInfo     `json:"serverInfo,omitempty"`
}
