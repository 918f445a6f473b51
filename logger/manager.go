// Package logger provides module-named, context-aware zap loggers.
package logger

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Manager owns the zap cores and hands out one CtxZapLogger per module.
type Manager struct {
	config  ManagerConfig
	loggers map[string]*CtxZapLogger
	mu      sync.RWMutex
}

var (
	globalManager *Manager
	managerOnce   sync.Once
	managerMu     sync.RWMutex
)

// NewManager creates an independent manager instance.
// Zero-value config fields are filled with defaults.
func NewManager(cfg ManagerConfig) *Manager {
	cfg.ApplyDefaults()
	return &Manager{
		config:  cfg,
		loggers: make(map[string]*CtxZapLogger),
	}
}

// Init installs cfg as the global manager configuration.
// Safe to call once at startup; later GetLogger calls use it.
func Init(cfg ManagerConfig) {
	managerMu.Lock()
	defer managerMu.Unlock()
	globalManager = NewManager(cfg)
}

// GetLogger returns the module logger from the global manager,
// initializing a default manager on first use if Init was never called.
func GetLogger(module string) *CtxZapLogger {
	managerMu.RLock()
	m := globalManager
	managerMu.RUnlock()

	if m == nil {
		managerOnce.Do(func() {
			managerMu.Lock()
			if globalManager == nil {
				globalManager = NewManager(DefaultManagerConfig())
			}
			managerMu.Unlock()
		})
		managerMu.RLock()
		m = globalManager
		managerMu.RUnlock()
	}
	return m.GetLogger(module)
}

// GetLogger returns (and lazily builds) the logger for a module.
func (m *Manager) GetLogger(module string) *CtxZapLogger {
	m.mu.RLock()
	if l, ok := m.loggers[module]; ok {
		m.mu.RUnlock()
		return l
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.loggers[module]; ok {
		return l
	}

	l := &CtxZapLogger{
		base:   m.buildZapLogger(module),
		module: module,
		config: m.config,
	}
	m.loggers[module] = l
	return l
}

// Sync flushes all module loggers.
func (m *Manager) Sync() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, l := range m.loggers {
		_ = l.base.Sync()
	}
}

func (m *Manager) buildZapLogger(module string) *zap.Logger {
	level := parseLevel(m.config.Level)

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var encoder zapcore.Encoder
	if m.config.Encoding == "console" {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	var cores []zapcore.Core
	if m.config.EnableConsole {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level))
	}
	if m.config.EnableFile {
		writer := &lumberjack.Logger{
			Filename:   filepath.Join(m.config.BaseLogDir, module+".log"),
			MaxSize:    m.config.MaxSize,
			MaxBackups: m.config.MaxBackups,
			MaxAge:     m.config.MaxAge,
			Compress:   m.config.Compress,
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(writer), level))
	}
	if len(cores) == 0 {
		cores = append(cores, zapcore.NewNopCore())
	}

	opts := []zap.Option{}
	if m.config.EnableCaller {
		// skip the CtxZapLogger wrapper frame
		opts = append(opts, zap.AddCaller(), zap.AddCallerSkip(1))
	}

	fields := []zap.Field{zap.String("module", module)}
	if m.config.AppName != "" {
		fields = append(fields, zap.String("app", m.config.AppName))
	}

	return zap.New(zapcore.NewTee(cores...), opts...).With(fields...)
}

func parseLevel(s string) zapcore.Level {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return zapcore.InfoLevel
	}
	return level
}
