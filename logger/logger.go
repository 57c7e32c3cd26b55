package logger

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var (
	log zerolog.Logger

	DurationAsString  = true
	DataFieldName     = "data"
	DurationFieldName = "dur"
	ErrorsFieldName   = "errors"

	EmptyMessage = ""
)

// ErrUnknownLevel is returned by SetLevel for names it does not recognize.
var ErrUnknownLevel = errors.New("unknown log level")

func Log() *zerolog.Logger {
	return &log
}

// JSON Tag a byte slice as being a JSON document
type JSON []byte

type Builder func(event *zerolog.Event)

func init() {
	setCallerFormatter()

	// Use GCP cloud logging naming
	zerolog.LevelFieldName = "severity"
	zerolog.LevelFieldMarshalFunc = func(l zerolog.Level) string {
		switch l {
		case zerolog.TraceLevel:
			return "DEFAULT"
		case zerolog.DebugLevel:
			return "DEBUG"
		case zerolog.InfoLevel:
			return "INFO"
		case zerolog.NoLevel:
			return "NOTICE"
		case zerolog.WarnLevel:
			return "WARN"
		case zerolog.ErrorLevel:
			return "ERROR"
		case zerolog.PanicLevel:
			return "CRITICAL"
		case zerolog.FatalLevel:
			return "EMERGENCY"
		default:
			return "DEFAULT"
		}
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	SetConsoleWriter(os.Stderr, false)
}

func setCallerFormatter() {
	_, file, _, _ := runtime.Caller(0)
	prefix := path.Dir(path.Dir(file))
	if len(prefix) > 0 && prefix[len(prefix)-1] != os.PathSeparator {
		prefix += "/"
	}

	zerolog.CallerMarshalFunc = func(file string, line int) string {
		if prefix == "" {
			return fmt.Sprintf("%s:%d", file, line)
		}
		index := strings.Index(file, prefix)
		if index > -1 {
			file = file[index+len(prefix):]
		}
		return fmt.Sprintf("%s:%d", file, line)
	}
}

func SetLogger(logger zerolog.Logger) {
	log = logger
}

// SetLevel sets the global level from one of the names accepted by the
// -loglevel flag: debug, verbose|verb, notice|info, warning|warn,
// error, quiet|silent.
func SetLevel(name string) error {
	var level zerolog.Level
	switch strings.ToLower(name) {
	case "debug":
		level = zerolog.DebugLevel
	case "verbose", "verb", "trace":
		level = zerolog.TraceLevel
	case "notice", "info", "":
		level = zerolog.InfoLevel
	case "warning", "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	case "quiet", "silent":
		level = zerolog.Disabled
	default:
		return fmt.Errorf("%w: %s", ErrUnknownLevel, name)
	}
	zerolog.SetGlobalLevel(level)
	return nil
}

func appendInterface(event *zerolog.Event, name string, value interface{}) {
	switch v := value.(type) {
	case time.Duration:
		if DurationAsString {
			event.Str(name, v.String())
		} else {
			event.Dur(name, v)
		}
	case JSON:
		event.RawJSON(name, v)
	case json.Marshaler:
		bytes, _ := v.MarshalJSON()
		event.RawJSON(name, bytes)
	default:
		event.Interface(name, value)
	}
}

// doLog turns args into fields. A leading error becomes the error field,
// string keys are followed by their value, a key containing '%' is a format
// template for the rest of args, and a trailing lone string is the message.
func doLog(skip int, event *zerolog.Event, args []interface{}) {
	if event == nil {
		// level disabled
		return
	}
	event.Timestamp()
	event.Caller(skip)

	if len(args) == 0 {
		event.Msg(EmptyMessage)
		return
	}

	if err, ok := args[0].(error); ok {
		event.Err(err)
		args = args[1:]
	}

	for i := 0; i < len(args); i++ {
		switch k := args[i].(type) {
		case nil:
			continue
		case string:
			if strings.Contains(k, "%") {
				event.Msgf(k, args[i+1:]...)
				return
			}
			if i+1 == len(args) {
				event.Msg(k)
				return
			}
			i++
			switch v := args[i].(type) {
			case string:
				event.Str(k, v)
			case []string:
				event.Strs(k, v)
			case time.Time:
				event.Time(k, v)
			case int:
				event.Int(k, v)
			case int64:
				event.Int64(k, v)
			case uint64:
				event.Uint64(k, v)
			case float64:
				event.Float64(k, v)
			case bool:
				event.Bool(k, v)
			case error:
				event.AnErr(k, v)
			case time.Duration:
				if DurationAsString {
					event.Str(k, v.String())
				} else {
					event.Dur(k, v)
				}
			case JSON:
				event.RawJSON(k, v)
			case Builder:
				v(event)
			default:
				appendInterface(event, k, v)
			}
		case error:
			event.Err(k)
		case []error:
			event.Errs(ErrorsFieldName, k)
		case time.Duration:
			if DurationAsString {
				event.Str(DurationFieldName, k.String())
			} else {
				event.Dur(DurationFieldName, k)
			}
		case JSON:
			event.RawJSON(DataFieldName, k)
		case Builder:
			k(event)
		default:
			appendInterface(event, DataFieldName, k)
		}
	}

	event.Msg(EmptyMessage)
}

func CustomLevel(level string) *zerolog.Event {
	if zerolog.GlobalLevel() > zerolog.InfoLevel {
		return nil
	}
	l := log.Level(zerolog.NoLevel)
	return l.Log().Str(zerolog.LevelFieldName, level)
}

// Trace logs a message at level Trace on the standard logger.
func Trace(args ...interface{}) {
	doLog(2, log.Trace(), args)
}

// Debug logs a message at level Debug on the standard logger.
func Debug(args ...interface{}) {
	doLog(2, log.Debug(), args)
}

// Info logs a message at level Info on the standard logger.
func Info(args ...interface{}) {
	doLog(2, log.Info(), args)
}

// Notice logs a message at level Notice on the standard logger.
func Notice(args ...interface{}) {
	doLog(2, CustomLevel("NOTICE"), args)
}

// Warn logs a message at level Warn on the standard logger.
func Warn(args ...interface{}) {
	doLog(2, log.Warn(), args)
}

// WarnErr logs err at level Warn on the standard logger.
func WarnErr(err error, args ...interface{}) {
	doLog(2, log.Warn().Err(err), args)
}

// Error logs a message at level Error on the standard logger.
func Error(err error, args ...interface{}) {
	doLog(2, log.Error().Err(err), args)
}
