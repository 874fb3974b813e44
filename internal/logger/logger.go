package logger

import "go.uber.org/zap"

// New builds the service logger. Production config for env "production",
// the human-readable development config otherwise.
func New(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
