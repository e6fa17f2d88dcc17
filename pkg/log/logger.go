// Copyright 2025 The axfor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package log 为 fileheads 各组件提供基于 zap 的结构化日志
//
// 进程内有一个全局 Logger，由 InitFromConfig 设置；库组件通过
// Logger.Zap() 拿到 *zap.Logger 后自行持有，不依赖全局状态。
package log

import (
	"os"
	"slices"
	"sync"
	"sync/atomic"

	"fileHeads/pkg/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	global atomic.Pointer[Logger]

	// 未初始化时使用的默认日志器
	fallback = sync.OnceValue(func() *Logger {
		l, err := NewLogger(DefaultConfig)
		if err != nil {
			return &Logger{zap: zap.NewNop()}
		}
		return l
	})
)

// Logger 结构化日志器
type Logger struct {
	zap *zap.Logger
}

// Config 日志配置
type Config struct {
	// Level 日志级别: debug, info, warn, error
	Level string

	// OutputPaths 日志输出路径，stdout、stderr 或文件路径
	OutputPaths []string

	// ErrorOutputPaths 只接收 Error 及以上级别的输出路径
	ErrorOutputPaths []string

	// Encoding 编码格式: json 或 console
	Encoding string

	DisableCaller     bool
	DisableStacktrace bool

	// EnableColor 仅对 console 编码生效
	EnableColor bool

	// Rotation 文件输出的轮转配置（stdout/stderr 不受影响）
	Rotation RotationConfig
}

// RotationConfig 日志轮转配置，由 lumberjack 实现
type RotationConfig struct {
	MaxSize    int // MB
	MaxAge     int // 天
	MaxBackups int
	Compress   bool
}

// DefaultConfig 默认配置
var DefaultConfig = &Config{
	Level:            "info",
	OutputPaths:      []string{"stdout"},
	ErrorOutputPaths: []string{"stderr"},
	Encoding:         "console",
	EnableColor:      true,
	Rotation:         RotationConfig{MaxSize: 100, MaxAge: 7, MaxBackups: 10},
}

// NewLogger 按配置创建日志器
func NewLogger(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig
	}

	level := zapcore.InfoLevel
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, err
	}

	encoder := newEncoder(cfg)

	cores := make([]zapcore.Core, 0, len(cfg.OutputPaths)+len(cfg.ErrorOutputPaths))
	for _, path := range cfg.OutputPaths {
		cores = append(cores, zapcore.NewCore(encoder.Clone(), writerFor(path, cfg.Rotation), level))
	}
	for _, path := range cfg.ErrorOutputPaths {
		if slices.Contains(cfg.OutputPaths, path) {
			continue // 同一路径不写两遍
		}
		cores = append(cores, zapcore.NewCore(encoder.Clone(), writerFor(path, cfg.Rotation), zapcore.ErrorLevel))
	}

	var opts []zap.Option
	if !cfg.DisableCaller {
		opts = append(opts, zap.AddCaller())
	}
	if !cfg.DisableStacktrace {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	return &Logger{zap: zap.New(zapcore.NewTee(cores...), opts...)}, nil
}

func newEncoder(cfg *Config) zapcore.Encoder {
	ec := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	if cfg.Encoding == "json" {
		return zapcore.NewJSONEncoder(ec)
	}
	if cfg.EnableColor {
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return zapcore.NewConsoleEncoder(ec)
}

// writerFor 文件输出交给 lumberjack，由它创建目录并轮转
func writerFor(path string, rotation RotationConfig) zapcore.WriteSyncer {
	switch path {
	case "stdout":
		return zapcore.Lock(os.Stdout)
	case "stderr":
		return zapcore.Lock(os.Stderr)
	}
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    rotation.MaxSize,
		MaxAge:     rotation.MaxAge,
		MaxBackups: rotation.MaxBackups,
		Compress:   rotation.Compress,
		LocalTime:  true,
	})
}

// InitFromConfig 用 config.LogConfig 构建日志器并设为全局日志器
// 重复调用会替换之前的全局日志器
func InitFromConfig(cfg *config.LogConfig) error {
	logCfg := DefaultConfig
	if cfg != nil {
		logCfg = &Config{
			Level:            cfg.Level,
			OutputPaths:      cfg.OutputPaths,
			ErrorOutputPaths: cfg.ErrorOutputPaths,
			Encoding:         cfg.Encoding,
			EnableColor:      cfg.Encoding == "console",
			Rotation: RotationConfig{
				MaxSize:    cfg.MaxSizeMB,
				MaxAge:     cfg.MaxAgeDays,
				MaxBackups: cfg.MaxBackups,
				Compress:   cfg.Compress,
			},
		}
	}

	l, err := NewLogger(logCfg)
	if err != nil {
		return err
	}
	global.Store(l)
	return nil
}

// GetLogger 获取全局日志器，未初始化时返回默认配置的日志器
func GetLogger() *Logger {
	if l := global.Load(); l != nil {
		return l
	}
	return fallback()
}

// Zap 返回底层 *zap.Logger，供只依赖 zap 的库组件使用
func (l *Logger) Zap() *zap.Logger {
	return l.zap
}

// Sync 同步日志缓冲区
func (l *Logger) Sync() error {
	return l.zap.Sync()
}

// With 返回附带字段的子日志器
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{zap: l.zap.With(fields...)}
}

// Named 创建命名子日志器
func (l *Logger) Named(name string) *Logger {
	return &Logger{zap: l.zap.Named(name)}
}

func (l *Logger) Debug(msg string, fields ...zap.Field) {
	l.zap.Debug(msg, fields...)
}

func (l *Logger) Info(msg string, fields ...zap.Field) {
	l.zap.Info(msg, fields...)
}

func (l *Logger) Warn(msg string, fields ...zap.Field) {
	l.zap.Warn(msg, fields...)
}

func (l *Logger) Error(msg string, fields ...zap.Field) {
	l.zap.Error(msg, fields...)
}

// Info 写入全局日志器
func Info(msg string, fields ...zap.Field) {
	GetLogger().Info(msg, fields...)
}

// Error 写入全局日志器
func Error(msg string, fields ...zap.Field) {
	GetLogger().Error(msg, fields...)
}
