package logger

// ManagerConfig is the shared configuration for all module loggers.
type ManagerConfig struct {
	Level         string `mapstructure:"level"`
	AppName       string `mapstructure:"app_name"`
	Encoding      string `mapstructure:"encoding"` // json or console
	EnableConsole bool   `mapstructure:"enable_console"`
	EnableFile    bool   `mapstructure:"enable_file"`
	BaseLogDir    string `mapstructure:"base_log_dir"`

	// File rotation (lumberjack)
	MaxSize    int  `mapstructure:"max_size"` // MB per file
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"` // days
	Compress   bool `mapstructure:"compress"`

	EnableCaller bool `mapstructure:"enable_caller"`

	// Trace ID extraction from context
	TraceIDKey       string `mapstructure:"trace_id_key"`
	TraceIDFieldName string `mapstructure:"trace_id_field_name"`
}

// DefaultManagerConfig returns the default manager configuration.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Level:            "info",
		Encoding:         "json",
		EnableConsole:    true,
		BaseLogDir:       "logs",
		MaxSize:          100,
		MaxBackups:       3,
		MaxAge:           28,
		Compress:         true,
		EnableCaller:     true,
		TraceIDKey:       "trace_id",
		TraceIDFieldName: "trace_id",
	}
}

// ApplyDefaults fills zero-value fields with defaults.
// Boolean fields keep their value; there is no way to tell an explicit
// false from an unset one after unmarshalling.
func (c *ManagerConfig) ApplyDefaults() {
	def := DefaultManagerConfig()
	if c.Level == "" {
		c.Level = def.Level
	}
	if c.Encoding == "" {
		c.Encoding = def.Encoding
	}
	if c.BaseLogDir == "" {
		c.BaseLogDir = def.BaseLogDir
	}
	if c.MaxSize == 0 {
		c.MaxSize = def.MaxSize
	}
	if c.MaxBackups == 0 {
		c.MaxBackups = def.MaxBackups
	}
	if c.MaxAge == 0 {
		c.MaxAge = def.MaxAge
	}
	if c.TraceIDKey == "" {
		c.TraceIDKey = def.TraceIDKey
	}
	if c.TraceIDFieldName == "" {
		c.TraceIDFieldName = def.TraceIDFieldName
	}
}
