package memredis

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSyntax is returned where there was a syntax error
var ErrSyntax = errors.New("syntax error")

// ErrWrongNumArgs is returned when the arg count is wrong
var ErrWrongNumArgs = errors.New("wrong number of arguments")

// ErrUnauthorized is returned when a client connection has not been authorized
var ErrUnauthorized = errors.New("NOAUTH Authentication required.")

// ErrInvalidPassword is returned by AUTH with a wrong password
var ErrInvalidPassword = errors.New("WRONGPASS invalid username-password pair or user is disabled.")

// ErrUnknownCommand is returned when a command is not known
var ErrUnknownCommand = errors.New("unknown command")

// ErrWrongType is returned when a key holds a value of another kind
var ErrWrongType = errors.New("WRONGTYPE Operation against a key holding the wrong kind of value")

// ErrNotInteger is returned when an argument should be an integer
var ErrNotInteger = errors.New("value is not an integer or out of range")

// ErrInvalidStreamID is returned for malformed stream identifiers
var ErrInvalidStreamID = errors.New("Invalid stream ID specified as stream command argument")

// ErrStreamIDTooSmall is returned when XADD would not grow the stream
var ErrStreamIDTooSmall = errors.New("The ID specified in XADD is equal or smaller than the target stream top item")

// ErrStreamIDZero is returned when XADD is given 0-0
var ErrStreamIDZero = errors.New("The ID specified in XADD must be greater than 0-0")

// ErrNoSuchKey is returned by XINFO for a missing stream
var ErrNoSuchKey = errors.New("no such key")

// ErrDBIndex is returned by SELECT for an out of range database
var ErrDBIndex = errors.New("DB index is out of range")

var errBlockTimeout = errors.New("timeout is not an integer or out of range")

var errUnbalancedXRead = errors.New("Unbalanced 'xread' list of streams: " +
	"for each stream key an ID or '$' must be specified.")

func errUnknownConfig(name string) error {
	return fmt.Errorf("Unknown option or number of arguments for CONFIG SET - '%s'", name)
}

func errInvalidConfig(name, value string) error {
	return fmt.Errorf("Invalid argument '%s' for CONFIG SET '%s'", value, name)
}

func errWrongNumArgsFor(cmd string) error {
	return fmt.Errorf("%w for '%s' command", ErrWrongNumArgs, cmd)
}

func errUnknownCommand(args []string) error {
	var rest string
	for _, arg := range args[1:] {
		rest += "'" + arg + "' "
	}
	return fmt.Errorf("%w '%s', with args beginning with: %s",
		ErrUnknownCommand, args[0], rest)
}

func errSubscribedContext(cmd string) error {
	return fmt.Errorf("Can't execute '%s': only (P)SUBSCRIBE / "+
		"(P)UNSUBSCRIBE / PING / QUIT / RESET are allowed in this context", cmd)
}

// errorReply renders err the way Redis does: messages carrying their own
// error code keep it, everything else gets ERR.
func errorReply(err error) string {
	msg := err.Error()
	code, _, _ := strings.Cut(msg, " ")
	switch code {
	case "NOAUTH", "WRONGPASS", "WRONGTYPE", "ERR":
		return msg
	}
	return "ERR " + msg
}
