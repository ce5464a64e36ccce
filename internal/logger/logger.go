package logger

import "go.uber.org/zap"

// New builds the process-wide logger. Development mode uses the console
// encoder; production emits JSON.
func New(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
