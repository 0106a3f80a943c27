package orchestrator

import "fmt"

// logPrefix is one of the six conventions §7 requires on every line
// appended to Deployment.logs. This is a data-format concern (text stored
// in the store), independent of the application's logrus-based logging.
type logPrefix string

const (
	logInfo    logPrefix = "[INFO]"
	logWarn    logPrefix = "[WARN]"
	logError   logPrefix = "[ERROR]"
	logRetry   logPrefix = "[RETRY]"
	logSuccess logPrefix = "[SUCCESS]"
	logSystem  logPrefix = "[SYSTEM]"
)

func logLine(prefix logPrefix, format string, args ...interface{}) string {
	return fmt.Sprintf("%s %s", prefix, fmt.Sprintf(format, args...))
}
