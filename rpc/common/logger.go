package common

import (
	"fmt"
	"github.com/lni/dragonboat/v4/logger"
	"log"
	"os"
	"strings"
)

// --------------------------------------------------------------------------
// Custom Logger (implements dragenboats logger.ILogger)
// --------------------------------------------------------------------------

// dRPCLogger implements the ILogger interface with custom formatting
type dRPCLogger struct {
	name   string
	level  logger.LogLevel
	logger *log.Logger
}

func (l *dRPCLogger) SetLevel(level logger.LogLevel) {
	l.level = level
}

func (l *dRPCLogger) Debugf(format string, args ...interface{}) {
	if l.level >= logger.DEBUG {
		l.log("DEBUG", format, args...)
	}
}

func (l *dRPCLogger) Infof(format string, args ...interface{}) {
	if l.level >= logger.INFO {
		l.log("INFO", format, args...)
	}
}

func (l *dRPCLogger) Warningf(format string, args ...interface{}) {
	if l.level >= logger.WARNING {
		l.log("WARN", format, args...)
	}
}

func (l *dRPCLogger) Errorf(format string, args ...interface{}) {
	if l.level >= logger.ERROR {
		l.log("ERROR", format, args...)
	}
}

func (l *dRPCLogger) Panicf(format string, args ...interface{}) {
	if l.level >= logger.CRITICAL {
		panic(fmt.Sprintf(format, args...))
	}
}

// log formats and writes a log message. this internal helper is used by the public methods
func (l *dRPCLogger) log(levelStr string, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	l.logger.Printf("%-5s | %-15s | %s", levelStr, l.name, message)
}

// prefixLogger tags every message of a wrapped logger, e.g. with the remote
// address of a connection so interleaved connections can be told apart
type prefixLogger struct {
	logger.ILogger
	prefix string
}

// WithPrefix returns a logger writing "[prefix] message" through l
func WithPrefix(l logger.ILogger, prefix string) logger.ILogger {
	return &prefixLogger{ILogger: l, prefix: "[" + prefix + "] "}
}

func (l *prefixLogger) Debugf(format string, args ...interface{}) {
	l.ILogger.Debugf(l.prefix+format, args...)
}

func (l *prefixLogger) Infof(format string, args ...interface{}) {
	l.ILogger.Infof(l.prefix+format, args...)
}

func (l *prefixLogger) Warningf(format string, args ...interface{}) {
	l.ILogger.Warningf(l.prefix+format, args...)
}

func (l *prefixLogger) Errorf(format string, args ...interface{}) {
	l.ILogger.Errorf(l.prefix+format, args...)
}

func (l *prefixLogger) Panicf(format string, args ...interface{}) {
	l.ILogger.Panicf(l.prefix+format, args...)
}

// --------------------------------------------------------------------------
// Logger Factory
// --------------------------------------------------------------------------

// CreateLogger creates a logger for the given package name (used as the dragonboat logger factory)
func CreateLogger(pkgName string) logger.ILogger {
	// Create standard logger with custom flags
	stdLogger := log.New(os.Stdout, "", log.Ldate|log.Ltime|log.Lmicroseconds)

	return &dRPCLogger{
		name:   pkgName,
		level:  logger.INFO,
		logger: stdLogger,
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// ParseLogLevel converts a string level to logger.LogLevel
func ParseLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return logger.DEBUG
	case "info":
		return logger.INFO
	case "warning", "warn":
		return logger.WARNING
	case "error":
		return logger.ERROR
	default:
		panic(fmt.Sprintf("invalid log level: %s. must be one of debug, info, warn, error", level))
	}
}

// --------------------------------------------------------------------------
// Logger initialization
// --------------------------------------------------------------------------

// loggerNames lists every logger used by the dRPC packages
var loggerNames = []string{
	"transport/rpc",
	"rpc",
	"rpc/client",
	"peer",
	"security",
	"serve",
}

// InitLoggers initializes all loggers with the custom format and the given level
func InitLoggers(level string) {
	lvl := ParseLogLevel(level)

	// Set as the global logger factory
	logger.SetLoggerFactory(CreateLogger)

	for _, name := range loggerNames {
		logger.GetLogger(name).SetLevel(lvl)
	}
}
