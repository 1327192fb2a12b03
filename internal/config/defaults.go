package config

const (
	defaultBaseURL          = "http://localhost:8000"
	defaultRequestTimeoutMs = 30000
	defaultStateDir         = "~/.local/share/fileconv"
	defaultPollIntervalMs   = 2000
	defaultMaxPollAttempts  = 150
	defaultHistoryEnabled   = true
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"

	credentialFileName = "credentials.json"
	historyFileName    = "history.db"
)

var defaultOutputFormats = []string{"pdf", "png", "jpg", "txt"}

// Default returns a Config populated with repository defaults.
//
// API.BaseURL is left empty so FILECONV_API_URL can take effect during
// normalization before the built-in default is applied.
func Default() Config {
	return Config{
		API: API{
			RequestTimeoutMs: defaultRequestTimeoutMs,
		},
		Session: Session{
			StateDir: defaultStateDir,
		},
		Jobs: Jobs{
			PollIntervalMs:  defaultPollIntervalMs,
			MaxPollAttempts: defaultMaxPollAttempts,
			OutputFormats:   append([]string(nil), defaultOutputFormats...),
			HistoryEnabled:  defaultHistoryEnabled,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
