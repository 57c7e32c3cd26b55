package logger

import (
	"strings"

	"github.com/rs/zerolog"
)

type lineWriter struct{}

// Writer routes line oriented output, such as the standard library log
// package or testcontainers, into the structured logger. A leading
// "[W]"/"[E]"/"[D]"/"[V]"/"[I]" tag selects the level and trailing
// key=value pairs after a ':' become fields.
var Writer = lineWriter{}

func (lineWriter) Write(p []byte) (int, error) {
	msg := strings.TrimSpace(string(p))
	// drop a timestamp prefix written by the log package
	if idx := strings.IndexByte(msg, '['); idx > 0 &&
		strings.Trim(msg[:idx], "0123456789/:. ") == "" {
		msg = msg[idx:]
	}
	level := zerolog.InfoLevel
	if idx := strings.IndexByte(msg, ']'); idx > 1 && msg[0] == '[' {
		switch msg[1] {
		case 'W':
			level = zerolog.WarnLevel
		case 'E':
			level = zerolog.ErrorLevel
		case 'D':
			level = zerolog.DebugLevel
		case 'V', 'T':
			level = zerolog.TraceLevel
		}
		msg = strings.TrimSpace(msg[idx+1:])
	}
	args := parseFields(msg)
	// keys and the message sit at even positions; a '%' there would be
	// taken as a format verb
	for i := 0; i < len(args); i += 2 {
		args[i] = strings.ReplaceAll(args[i].(string), "%", "%%")
	}
	doLog(3, log.WithLevel(level), args)
	return len(p), nil
}

// parseFields splits `msg: a=1 b="two words"` into key/value args followed
// by the message.
func parseFields(msg string) []interface{} {
	idx := strings.IndexByte(msg, ':')
	if idx == -1 {
		return []interface{}{msg}
	}
	fields := strings.TrimSpace(msg[idx+1:])
	if !strings.Contains(fields, "=") {
		return []interface{}{msg}
	}
	msg = strings.TrimSpace(msg[:idx])
	args := make([]interface{}, 0, 8)
	for len(fields) > 0 {
		idx = strings.IndexByte(fields, '=')
		if idx == -1 {
			args = append(args, fields, "")
			break
		}
		name := strings.TrimSpace(fields[:idx])
		fields = strings.TrimSpace(fields[idx+1:])
		if len(fields) == 0 {
			args = append(args, name, "")
			break
		}
		var value string
		if fields[0] == '"' {
			fields = fields[1:]
			idx = strings.IndexByte(fields, '"')
			if idx == -1 {
				value, fields = fields, ""
			} else {
				value, fields = fields[:idx], strings.TrimSpace(fields[idx+1:])
			}
		} else {
			idx = strings.IndexByte(fields, ' ')
			if idx == -1 {
				value, fields = fields, ""
			} else {
				value, fields = fields[:idx], strings.TrimSpace(fields[idx+1:])
			}
		}
		args = append(args, name, value)
		if len(args) > 13 {
			break
		}
	}
	return append(args, msg)
}

// Printf satisfies the testcontainers Logging interface.
func (lineWriter) Printf(format string, v ...interface{}) {
	if e := log.Debug(); e != nil {
		e.Timestamp().Msgf(strings.TrimSpace(format), v...)
	}
}
