package logger

// Option modifies a logger configuration
type Option func(*Config)

// WithLevel sets the log level
func WithLevel(level string) Option {
	return func(c *Config) { c.Level = level }
}

// WithFormat sets the log format (json or console)
func WithFormat(format string) Option {
	return func(c *Config) { c.Format = format }
}

// WithOutput sets the log output (console, file, or both)
func WithOutput(output string) Option {
	return func(c *Config) { c.Output = output }
}

// WithService tags every entry with a service name
func WithService(name string) Option {
	return func(c *Config) { c.Service = name }
}

// NewWithOptions creates a logger from DefaultConfig plus opts
func NewWithOptions(opts ...Option) (*Logger, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return New(cfg)
}

// Development returns a console logger at debug level, used by archivectl --verbose
func Development() (*Logger, error) {
	return NewWithOptions(
		WithLevel("debug"),
		WithFormat("console"),
		WithOutput("console"),
	)
}
