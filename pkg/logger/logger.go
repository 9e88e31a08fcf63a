package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// 所有日志统一带 service 字段，多进程汇聚到同一日志面时区分来源
const serviceName = "nexus-ledger"

var (
	Log  *logrus.Logger
	base *logrus.Entry
)

func Init(level, format, output string) error {
	Log = logrus.New()

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	Log.SetLevel(lvl)

	if format == "json" {
		Log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	} else {
		Log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	switch output {
	case "stdout":
		Log.SetOutput(os.Stdout)
	case "stderr":
		Log.SetOutput(os.Stderr)
	default:
		file, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return err
		}
		Log.SetOutput(file)
	}

	base = Log.WithField("service", serviceName)
	return nil
}

func WithFields(fields logrus.Fields) *logrus.Entry {
	return base.WithFields(fields)
}

func Info(args ...interface{}) {
	base.Info(args...)
}

func Error(args ...interface{}) {
	base.Error(args...)
}

func Warn(args ...interface{}) {
	base.Warn(args...)
}

func Debug(args ...interface{}) {
	base.Debug(args...)
}

func Fatal(args ...interface{}) {
	base.Fatal(args...)
}
