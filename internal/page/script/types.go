package script

import "time"

// GlobalName is the name of the namespace object installed in the VM.
const GlobalName = "SprintManagementExtension"

// Config defines runtime limits.
type Config struct {
	Timeout       time.Duration // Whole-script execution timeout
	EnableConsole bool          // Capture console.log/warn/error/info
}

// DefaultConfig returns the default runtime configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:       time.Minute,
		EnableConsole: true,
	}
}

// Result holds the outcome of one script.
type Result struct {
	Value    any
	Console  []LogEntry
	Duration time.Duration
}

// LogEntry is one captured console line.
type LogEntry struct {
	Level   string
	Message string
	Time    time.Time
}
