package handshake

import (
	"fmt"
	"strings"
	"time"

	"code.hybscloud.com/iox"
	"github.com/mash-protocol/busgo/pkg/log"
)

// eventSink turns handshake activity into protocol log events.
type eventSink struct {
	logger log.Logger
	connID string
	role   log.Role
}

func newEventSink(logger log.Logger, connID string, role log.Role) eventSink {
	return eventSink{logger: log.OrNoop(logger), connID: connID, role: role}
}

func (s eventSink) base(dir log.Direction, cat log.Category) log.Event {
	return log.Event{
		Timestamp:    time.Now(),
		ConnectionID: s.connID,
		Direction:    dir,
		Layer:        log.LayerAuth,
		Category:     cat,
		LocalRole:    s.role,
	}
}

// line logs one handshake line, stripped of NUL and CRLF.
func (s eventSink) line(dir log.Direction, line string) {
	text := strings.TrimSuffix(strings.TrimPrefix(line, "\x00"), "\r\n")
	command := text
	if i := strings.IndexByte(text, ' '); i >= 0 {
		command = text[:i]
	}
	e := s.base(dir, log.CategoryMessage)
	e.AuthLine = &log.AuthLineEvent{Command: command, Line: text}
	s.logger.Log(e)
}

func (s eventSink) state(oldState, newState fmt.Stringer) {
	if oldState.String() == newState.String() {
		return
	}
	e := s.base(log.DirectionOut, log.CategoryState)
	e.StateChange = &log.StateChangeEvent{
		Entity:   log.StateEntityHandshake,
		OldState: oldState.String(),
		NewState: newState.String(),
	}
	s.logger.Log(e)
}

// failure logs err unless it is the would-block signal.
func (s eventSink) failure(err error, context string) {
	if err == nil || iox.IsWouldBlock(err) {
		return
	}
	e := s.base(log.DirectionIn, log.CategoryError)
	e.Error = &log.ErrorEventData{
		Layer:   log.LayerAuth,
		Message: err.Error(),
		Context: context,
	}
	s.logger.Log(e)
}
