package logs

import (
	"io"
	"os"

	"github.com/reusee/optix/cmds"
)

// Writer receives terminal log records. Results go to stdout, so logs default to stderr.
type Writer io.Writer

var logFile = cmds.Var[string]("-log-file")

func (Module) Writer() Writer {
	if *logFile == "" {
		return os.Stderr
	}
	f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		os.Stderr.WriteString("open log file: " + err.Error() + "\n")
		return os.Stderr
	}
	return f
}
