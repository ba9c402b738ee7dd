package glassfy

import (
	"flag"
	"fmt"
)

type LogLevel int

const (
	LogLevelOff LogLevel = iota
	LogLevelError
	LogLevelDebug
	LogLevelAll
)

// SetLogLevel maps the SDK log level onto glog's -v and -stderrthreshold flags
func SetLogLevel(level LogLevel) error {
	var verbosity, threshold string
	switch level {
	case LogLevelOff:
		verbosity, threshold = "0", "FATAL"
	case LogLevelError:
		verbosity, threshold = "0", "ERROR"
	case LogLevelDebug:
		verbosity, threshold = "2", "INFO"
	case LogLevelAll:
		verbosity, threshold = "4", "INFO"
	default:
		return fmt.Errorf("unknown log level %d", level)
	}
	if err := flag.Set("v", verbosity); err != nil {
		return err
	}
	return flag.Set("stderrthreshold", threshold)
}
