package utils

import (
	"fmt"
	"log"
	"sync/atomic"
)

// LogLevel 日志级别
type LogLevel int

const (
	LevelInfo LogLevel = iota
	LevelWarn
	LevelError
)

func (l LogLevel) String() string {
	switch l {
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// LogFunc 日志输出函数, 与 log.Printf 签名相同
type LogFunc = func(format string, v ...interface{})

// logf 当前的日志函数. 重算在定时器 goroutine 中执行, 所以替换和读取都走原子操作
var logf atomic.Pointer[LogFunc]

func init() {
	SetLogger(log.Printf)
}

// SetLogger 替换日志函数并返回原来的函数, 传入 nil 表示丢弃所有日志
func SetLogger(f LogFunc) LogFunc {
	if f == nil {
		f = func(string, ...interface{}) {}
	}
	if prev := logf.Swap(&f); prev != nil {
		return *prev
	}
	return nil
}

// Logf 使用当前的日志函数输出
func Logf(format string, v ...interface{}) {
	(*logf.Load())(format, v...)
}

// Log 按级别输出一条日志
func Log(level LogLevel, format string, v ...interface{}) {
	Logf("[%s] %s", level, fmt.Sprintf(format, v...))
}

func LogInfo(format string, v ...interface{})  { Log(LevelInfo, format, v...) }
func LogWarn(format string, v ...interface{})  { Log(LevelWarn, format, v...) }
func LogError(format string, v ...interface{}) { Log(LevelError, format, v...) }
