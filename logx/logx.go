// Package logx 基于 zap 的轻量日志封装，供本库各包输出调试与错误日志。
package logx

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config 日志配置。
type Config struct {
	Level string `mapstructure:"level" yaml:"level"` // debug/info/warn/error，默认 info
	File  string `mapstructure:"file" yaml:"file"`   // 为空则输出到 stderr
	JSON  bool   `mapstructure:"json" yaml:"json"`   // 使用 JSON 编码

	// 文件输出时的轮转设置
	MaxSizeMB  int `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int `mapstructure:"max_age_days" yaml:"max_age_days"`
}

// Logger 封装 zap.SugaredLogger。
type Logger struct {
	s     *zap.SugaredLogger
	level zap.AtomicLevel
}

// New 按配置构建 Logger。
func New(cfg Config) (*Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	atom := zap.NewAtomicLevelAt(level)

	var sink zapcore.WriteSyncer
	if cfg.File != "" {
		sink = zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    orDefault(cfg.MaxSizeMB, 100),
			MaxBackups: orDefault(cfg.MaxBackups, 3),
			MaxAge:     orDefault(cfg.MaxAgeDays, 28),
		})
	} else {
		sink = zapcore.Lock(os.Stderr)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	if cfg.JSON {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, sink, atom)
	l := zap.New(core)
	return &Logger{s: l.Sugar(), level: atom}, nil
}

func parseLevel(s string) (zapcore.Level, error) {
	switch s {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return 0, fmt.Errorf("logx: unknown level %q", s)
	}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// SetLevel 动态调整级别。
func (l *Logger) SetLevel(level string) error {
	lv, err := parseLevel(level)
	if err != nil {
		return err
	}
	l.level.SetLevel(lv)
	return nil
}

// With 派生带固定键值对的 Logger。
func (l *Logger) With(args ...interface{}) *Logger {
	return &Logger{s: l.s.With(args...), level: l.level}
}

func (l *Logger) Debugf(format string, args ...interface{}) { l.s.Debugf(format, args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.s.Infof(format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.s.Warnf(format, args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.s.Errorf(format, args...) }

// Sync 刷写缓冲日志。
func (l *Logger) Sync() error { return l.s.Sync() }

var (
	mu  sync.RWMutex
	def *Logger
)

func init() {
	// 默认 logger 只会因非法 level 失败，这里的配置不会触发
	def, _ = New(Config{Level: "info"})
}

// Default 返回全局 logger。
func Default() *Logger {
	mu.RLock()
	defer mu.RUnlock()
	return def
}

// SetDefault 替换全局 logger。
func SetDefault(l *Logger) {
	if l == nil {
		return
	}
	mu.Lock()
	def = l
	mu.Unlock()
}

// 包级便捷函数，委托给全局 logger。
func Debugf(format string, args ...interface{}) { Default().Debugf(format, args...) }
func Infof(format string, args ...interface{})  { Default().Infof(format, args...) }
func Warnf(format string, args ...interface{})  { Default().Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { Default().Errorf(format, args...) }
