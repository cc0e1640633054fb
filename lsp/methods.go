package lsp

// Method is a protocol method identifier used in JSON-RPC messages.
type Method string

// Protocol method names and notifications.
const (
	// Lifecycle
	InitializeMethod              Method = "initialize"
	InitializedNotificationMethod Method = "initialized"
	ShutdownMethod                Method = "shutdown"
	ExitNotificationMethod        Method = "exit"

	// Text document synchronization
	DidOpenNotificationMethod  Method = "textDocument/didOpen"
	DidCloseNotificationMethod Method = "textDocument/didClose"

	// Language features
	HoverMethod                          Method = "textDocument/hover"
	DecorationsMethod                    Method = "textDocument/decorations"
	PublishDecorationsNotificationMethod Method = "textDocument/publishDecorations"

	// Workspace
	ConfigurationMethod                     Method = "workspace/configuration"
	DidChangeWatchedFilesNotificationMethod Method = "workspace/didChangeWatchedFiles"

	// Window
	LogMessageNotificationMethod  Method = "window/logMessage"
	ShowMessageNotificationMethod Method = "window/showMessage"
)
