// Package constants defines shared configuration constants.
package constants

var (
	// AppName is the binary and command name.
	AppName = "symload"

	ConfigFile = "config.yaml"

	// DefaultDir is the per-user state directory below the home directory.
	DefaultDir = ".symload"

	// ConfigDirEnv overrides the directory containing DefaultDir.
	ConfigDirEnv = "SYMLOAD_CONFIG"

	// HistoryFile is the shell history file name inside DefaultDir.
	HistoryFile = "history"

	// ExitOK, ExitFailure and ExitPartial are the process exit statuses.
	ExitOK      = 0
	ExitFailure = 1
	ExitPartial = 2
)
