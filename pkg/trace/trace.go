// Package trace provides the optional diagnostic call log. It is switched
// on by setting CONTROLCAN_LOG=1 in the environment and writes timestamped,
// human readable lines to ControlCAN.log in the working directory.
package trace

import (
	"fmt"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

const (
	EnvLog   = "CONTROLCAN_LOG"
	FileName = "ControlCAN.log"
)

var (
	once    sync.Once
	logger  *logrus.Logger
	enabled bool
)

// lineFormatter keeps the log plain: wall clock with millisecond resolution
// followed by the message.
type lineFormatter struct{}

func (lineFormatter) Format(e *logrus.Entry) ([]byte, error) {
	return []byte(e.Time.Format("15:04:05.000") + "  " + e.Message + "\n"), nil
}

func setup() {
	if os.Getenv(EnvLog) != "1" {
		return
	}
	f, err := os.OpenFile(FileName, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	logger = logrus.New()
	logger.SetOutput(f)
	logger.SetFormatter(lineFormatter{})
	enabled = true
	logger.Info("Logging enabled")
}

// Enabled reports whether diagnostic logging is active. The first call
// evaluates the environment and opens the log file.
func Enabled() bool {
	once.Do(setup)
	return enabled
}

// Printf writes one formatted line to the diagnostic log.
func Printf(format string, args ...any) {
	if !Enabled() {
		return
	}
	logger.Infof(format, args...)
}

// Frame dumps one CAN frame to the diagnostic log.
func Frame(prefix string, id uint32, extended, remote bool, data []byte) {
	if !Enabled() {
		return
	}
	kind, typ := "STD", "DATA"
	if extended {
		kind = "EXT"
	}
	if remote {
		typ = "RTR"
	}
	line := fmt.Sprintf("%s ID=0x%08X %s %s DLC=%d DATA:", prefix, id, kind, typ, len(data))
	for _, b := range data {
		line += fmt.Sprintf(" %02X", b)
	}
	logger.Info(line)
}
