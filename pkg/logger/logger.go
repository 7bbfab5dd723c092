package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// Logger 全局日志实例
	Logger *logrus.Logger
	// currentLogFile 当前日志文件路径
	currentLogFile string
	// savedConfig 保存的日志配置（用于按 session 切换文件）
	savedConfig Config
	// currentSession 当前 session id（0 表示未按 session 命名）
	currentSession int64
	// logMu 日志文件切换锁
	logMu sync.Mutex
)

// Config 日志配置
type Config struct {
	Level        string `yaml:"level"`          // 日志级别: debug, info, warn, error
	OutputFile   string `yaml:"output_file"`    // 日志文件路径（可选，为空则只输出到控制台）
	MaxSize      int    `yaml:"max_size"`       // 日志文件最大大小（MB）
	MaxBackups   int    `yaml:"max_backups"`    // 保留的旧日志文件数量
	MaxAge       int    `yaml:"max_age"`        // 保留旧日志文件的天数
	Compress     bool   `yaml:"compress"`       // 是否压缩旧日志文件
	LogBySession bool   `yaml:"log_by_session"` // 是否按 session 命名日志文件
	// Quiet 不写 stdout（终端被 dashboard 占用时使用）
	Quiet bool `yaml:"quiet"`
}

// sessionLogFileName 根据 session 生成日志文件名
// 例如：logs/bot.log + session 12 -> logs/bot_session-12.log
func sessionLogFileName(basePath string, session int64) string {
	if session <= 0 {
		return basePath
	}
	dir := filepath.Dir(basePath)
	baseName := filepath.Base(basePath)
	ext := filepath.Ext(baseName)
	nameWithoutExt := baseName[:len(baseName)-len(ext)]

	name := fmt.Sprintf("%s_session-%d%s", nameWithoutExt, session, ext)
	if dir == "." || dir == "" {
		return name
	}
	return filepath.Join(dir, name)
}

func newFormatter() logrus.Formatter {
	return &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "06-01-02 15:04:05", // 格式: yy-mm-dd HH:MM:ss
		ForceColors:     true,
	}
}

// Init 初始化日志系统
func Init(config Config) error {
	logMu.Lock()
	defer logMu.Unlock()
	savedConfig = config
	return apply(config, sessionLogFileName(config.OutputFile, sessionFor(config)))
}

func sessionFor(config Config) int64 {
	if config.LogBySession {
		return currentSession
	}
	return 0
}

// apply 构建 logger 并替换全局输出；调用方持有 logMu
func apply(config Config, logFilePath string) error {
	logger := logrus.New()

	// 设置日志级别
	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	logger.SetFormatter(newFormatter())

	// 设置输出
	var writers []io.Writer
	if !config.Quiet {
		writers = append(writers, os.Stdout)
	}

	// 如果配置了日志文件，添加文件输出
	if config.OutputFile != "" {
		// 确保日志目录存在
		if err := os.MkdirAll(filepath.Dir(logFilePath), 0755); err != nil {
			return err
		}
		writers = append(writers, &lumberjack.Logger{
			Filename:   logFilePath,
			MaxSize:    config.MaxSize,
			MaxBackups: config.MaxBackups,
			MaxAge:     config.MaxAge,
			Compress:   config.Compress,
		})
		currentLogFile = logFilePath
	}
	if len(writers) == 0 {
		writers = append(writers, io.Discard)
	}

	// 使用 MultiWriter 同时输出到控制台和文件
	multiWriter := io.MultiWriter(writers...)
	logger.SetOutput(multiWriter)

	// 同时设置全局 logrus 的输出，确保各模块 logrus.WithField() 创建的 logger 也能写入文件
	logrus.SetOutput(multiWriter)
	logrus.SetLevel(level)
	logrus.SetFormatter(newFormatter())

	Logger = logger
	return nil
}

// SetSession 切换到新的 session；开启 LogBySession 时日志写入新的文件
func SetSession(session int64) error {
	logMu.Lock()
	defer logMu.Unlock()
	if session == currentSession {
		return nil
	}
	currentSession = session
	if !savedConfig.LogBySession || savedConfig.OutputFile == "" {
		return nil
	}

	old := currentLogFile
	path := sessionLogFileName(savedConfig.OutputFile, session)
	if err := apply(savedConfig, path); err != nil {
		return err
	}
	Logger.Infof("日志文件已切换到新 session: %s -> %s", old, path)
	return nil
}

// InitDefault 使用默认配置初始化日志系统
func InitDefault() error {
	return Init(Config{
		Level:      "info",
		OutputFile: "logs/bot.log",
		MaxSize:    100, // 100MB
		MaxBackups: 3,
		MaxAge:     7, // 7天
		Compress:   true,
	})
}

// Debugf 记录格式化的 DEBUG 级别日志
func Debugf(format string, args ...interface{}) {
	if Logger != nil {
		Logger.Debugf(format, args...)
	}
}

// Infof 记录格式化的 INFO 级别日志
func Infof(format string, args ...interface{}) {
	if Logger != nil {
		Logger.Infof(format, args...)
	}
}

// Warnf 记录格式化的 WARN 级别日志
func Warnf(format string, args ...interface{}) {
	if Logger != nil {
		Logger.Warnf(format, args...)
	}
}

// Errorf 记录格式化的 ERROR 级别日志
func Errorf(format string, args ...interface{}) {
	if Logger != nil {
		Logger.Errorf(format, args...)
	}
}

// WithField 添加字段到日志上下文
func WithField(key string, value interface{}) *logrus.Entry {
	if Logger != nil {
		return Logger.WithField(key, value)
	}
	return logrus.NewEntry(logrus.New())
}

// GetCurrentLogFile 获取当前日志文件路径
func GetCurrentLogFile() string {
	logMu.Lock()
	defer logMu.Unlock()
	return currentLogFile
}
