package common

const (
	AppName = "runcommands"
)

// Environment variables consulted for unset logging config fields.
// Explicit config and flags always win.
const (
	EnvLogLevel = "RUNCOMMANDS_LOG_LEVEL"
	EnvLogDir   = "RUNCOMMANDS_LOG_DIR"
)

// Log field names shared across packages so runs can be correlated
// and filtered uniformly.
const (
	LogFieldApp    = "App"
	LogFieldRunner = "Runner"
	LogFieldCmd    = "Command"
	LogFieldRunID  = "RunID"
	LogFieldPid    = "Pid"
)

const (
	// ExitCodeNeverRan is the sentinel returned when no command was
	// supplied. Callers must treat it as "never ran", not as a real
	// exit status from a child.
	ExitCodeNeverRan = 999

	// ExitCodeBadParameter is the sentinel returned when an elevated
	// run is rejected before spawning (blank user/password, no command).
	ExitCodeBadParameter = 255

	// ExitCodeNotPrivileged is the sentinel returned when a privileged
	// drop is requested by a non-root caller.
	ExitCodeNotPrivileged = 256
)

// Fixed system binaries used by the elevation flows. These are paths,
// not names, so a modified PATH cannot redirect an elevated run.
const (
	DefaultSuPath    = "/usr/bin/su"
	DefaultSudoPath  = "/usr/bin/sudo"
	DefaultShellPath = "/bin/sh"
)
