package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func zapString(key, val string) zapcore.Field {
	return zap.String(key, val)
}
