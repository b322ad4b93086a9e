package logger

import (
	"go.uber.org/zap"
)

var log *zap.Logger

// Init sets up the process-wide structured logger. Safe to call more than
// once; the last call wins.
func Init() {
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = true
	built, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		built = zap.NewNop()
	}
	log = built
}

func Info(event string, fields map[string]interface{}) {
	logger().Info(event, toZapFields(fields)...)
}

func Warn(event string, fields map[string]interface{}) {
	logger().Warn(event, toZapFields(fields)...)
}

func Error(event string, err error, fields map[string]interface{}) {
	zapFields := toZapFields(fields)
	if err != nil {
		zapFields = append(zapFields, zap.Error(err))
	}
	logger().Error(event, zapFields...)
}

func InfoWithUser(userID, event string, fields map[string]interface{}) {
	zapFields := append(toZapFields(fields), zap.String("user_id", userID))
	logger().Info(event, zapFields...)
}

func WarnWithUser(userID, event string, fields map[string]interface{}) {
	zapFields := append(toZapFields(fields), zap.String("user_id", userID))
	logger().Warn(event, zapFields...)
}

func logger() *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log
}

func toZapFields(fields map[string]interface{}) []zap.Field {
	zapFields := make([]zap.Field, 0, len(fields)+1)
	for key, value := range fields {
		zapFields = append(zapFields, zap.Any(key, value))
	}
	return zapFields
}
