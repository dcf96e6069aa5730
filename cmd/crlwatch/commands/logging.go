package commands

import (
	"github.com/sirupsen/logrus"

	"github.com/crlwatch/crlwatch/pkg/utils"
)

// runLogger is the structured logger built during root command setup. It
// stays nil when logger initialization fell back to the plain standard
// logger.
var runLogger *utils.Logger

func SetRunLogger(l *utils.Logger) {
	runLogger = l
}

// CloseRunLogger releases the log file sink after the command finished.
func CloseRunLogger() {
	if runLogger != nil {
		_ = runLogger.Close()
	}
}

// pipelineLogger returns the logrus logger handed to pipeline components.
func pipelineLogger() *logrus.Logger {
	if runLogger != nil {
		return runLogger.Logger
	}
	return logrus.StandardLogger()
}

// stageLogger returns an entry scoped to one pipeline stage.
func stageLogger(component string) *logrus.Entry {
	if runLogger != nil {
		return runLogger.WithComponent(component)
	}
	return logrus.StandardLogger().WithField("component", component)
}
