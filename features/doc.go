// Package features contains the bundled session.Feature implementations.
//
//	DidOpen       : textDocument/didOpen and didClose as the open document changes
//	Hover         : typed textDocument/hover requests plus a hover provider
//	Decorations   : textDocument/decorations requests, publishDecorations pushes
//	WatchedFiles  : fsnotify events forwarded as workspace/didChangeWatchedFiles
//	Window        : window/logMessage and window/showMessage into slog
//	Configuration : answers workspace/configuration from static settings
//
// Request-issuing Features accept a RequestPolicy so a Timeout or Throttle can
// be layered over Session.SendRequest.
package features
