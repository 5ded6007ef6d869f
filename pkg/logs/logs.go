package logs

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
)

type Output string

const (
	Stdout Output = "stdout"
	Stderr Output = "stderr"
	File   Output = "file"
)

type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var levelTags = []string{"[TRACE] ", "[DEBUG] ", "[INFO] ", "[WARN] ", "[ERROR] ", "[FATAL] "}

func (lv Level) tag() string {
	if lv >= LevelTrace && lv <= LevelFatal {
		return levelTags[lv]
	}
	return fmt.Sprintf("[?%d] ", lv)
}

// GetLevel 解析日志级别
func GetLevel(level string) Level {
	switch strings.ToUpper(level) {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return LevelDebug
	case "INFO":
		return LevelInfo
	case "WARN":
		return LevelWarn
	case "ERROR":
		return LevelError
	case "FATAL":
		return LevelFatal
	default:
		return LevelInfo
	}
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level" mapstructure:"level"`
	Output Output `json:"output" yaml:"output" mapstructure:"output"`
	Path   string `json:"path" yaml:"path" mapstructure:"path"`
	File   string `json:"file" yaml:"file" mapstructure:"file"`
}

func (cfg *LogConfig) Prepare() {
	if cfg.Output == "" {
		cfg.Output = Stdout
	}
	if cfg.Path == "" {
		cfg.Path = "logs"
	}
}

type iLog struct {
	stdLog *log.Logger
	level  Level
}

var logger = &iLog{
	level:  LevelInfo,
	stdLog: log.New(os.Stderr, "", log.LstdFlags|log.Lshortfile|log.Lmicroseconds),
}

func (il *iLog) logf(lv Level, format string, v ...interface{}) {
	if il.level > lv {
		return
	}
	msg := lv.tag() + fmt.Sprintf(format, v...)
	il.stdLog.Output(4, msg)
	if lv == LevelFatal {
		os.Exit(1)
	}
}

func (il *iLog) logfCtx(ctx context.Context, lv Level, format string, v ...interface{}) {
	if il.level > lv {
		return
	}
	msg := lv.tag()
	if logID := ctx.Value("log-id"); logID != nil {
		msg += fmt.Sprintf("[log-id: %v] ", logID)
	}
	msg += fmt.Sprintf(format, v...)
	il.stdLog.Output(4, msg)
	if lv == LevelFatal {
		os.Exit(1)
	}
}

// SetOutput 设置日志输出，默认stderr
func SetOutput(w io.Writer) {
	logger.stdLog.SetOutput(w)
}

// SetLevel 设置日志级别，低于该级别的日志不输出
func SetLevel(lv Level) {
	logger.level = lv
}

// CreateFileWriter 构建日志文件写入器
func CreateFileWriter(path, name string) (io.Writer, error) {
	os.MkdirAll(path, 0755)
	file := filepath.Join(path, name)
	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("打开日志文件错误, err: %v", err)
	}
	return f, nil
}

// InitLogger 初始化默认日志
func InitLogger(cfg LogConfig, defaultLogFile string) error {
	cfg.Prepare()
	if cfg.File == "" {
		cfg.File = defaultLogFile
	}
	SetLevel(GetLevel(cfg.Level))
	switch cfg.Output {
	case Stdout:
		SetOutput(os.Stdout)
	case Stderr:
		SetOutput(os.Stderr)
	case File:
		writer, err := CreateFileWriter(cfg.Path, cfg.File)
		if err != nil {
			return err
		}
		SetOutput(writer)
	}
	return nil
}

func Tracef(format string, v ...interface{}) { logger.logf(LevelTrace, format, v...) }
func Debugf(format string, v ...interface{}) { logger.logf(LevelDebug, format, v...) }
func Infof(format string, v ...interface{})  { logger.logf(LevelInfo, format, v...) }
func Warnf(format string, v ...interface{})  { logger.logf(LevelWarn, format, v...) }
func Errorf(format string, v ...interface{}) { logger.logf(LevelError, format, v...) }
func Fatalf(format string, v ...interface{}) { logger.logf(LevelFatal, format, v...) }

func CtxTracef(ctx context.Context, format string, v ...interface{}) {
	logger.logfCtx(ctx, LevelTrace, format, v...)
}

func CtxDebugf(ctx context.Context, format string, v ...interface{}) {
	logger.logfCtx(ctx, LevelDebug, format, v...)
}

func CtxInfof(ctx context.Context, format string, v ...interface{}) {
	logger.logfCtx(ctx, LevelInfo, format, v...)
}

func CtxWarnf(ctx context.Context, format string, v ...interface{}) {
	logger.logfCtx(ctx, LevelWarn, format, v...)
}

func CtxErrorf(ctx context.Context, format string, v ...interface{}) {
	logger.logfCtx(ctx, LevelError, format, v...)
}

func CtxFatalf(ctx context.Context, format string, v ...interface{}) {
	logger.logfCtx(ctx, LevelFatal, format, v...)
}
