package supervisor

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// OutputSink receives parsed llama-server output. Update carries a line
// the server is rewriting in place (progress counters), Line a completed
// one, and EndUpdate marks that an in-place sequence has finished.
type OutputSink interface {
	Update(line string)
	Line(line string)
	EndUpdate()
}

// lineParser splits a raw output stream on \r and \n. llama-server mixes
// both: progress output rewrites a line with bare carriage returns, then
// settles it with a newline.
type lineParser struct {
	sink     OutputSink
	buf      []byte
	inUpdate bool
}

func (p *lineParser) feed(c byte) {
	switch c {
	case '\r':
		line, ok := p.takeLine()
		if !ok {
			return
		}
		if line != "" {
			p.sink.Update(line)
			p.inUpdate = true
		}
	case '\n':
		line, ok := p.takeLine()
		if !ok {
			return
		}
		if p.inUpdate {
			p.sink.EndUpdate()
			p.inUpdate = false
		}
		if line != "" {
			p.sink.Line(line)
		}
	default:
		p.buf = append(p.buf, c)
	}
}

// takeLine drains the buffer. Lines that are not valid UTF-8 are dropped
// wholesale rather than emitted mangled.
func (p *lineParser) takeLine() (string, bool) {
	raw := p.buf
	p.buf = p.buf[:0]
	if !utf8.Valid(raw) {
		return "", false
	}
	return string(bytes.TrimSpace(raw)), true
}

// close flushes a dangling in-place update. Unterminated partial lines are
// dropped; the server always ends its lines.
func (p *lineParser) close() {
	if p.inUpdate {
		p.sink.EndUpdate()
		p.inUpdate = false
	}
}

// relayWriter adapts the parser to exec's output plumbing: the command
// copies child output into Write as it arrives, and the parser walks it
// byte by byte so carriage-return updates surface without line buffering.
type relayWriter struct {
	sink OutputSink
	p    *lineParser
}

func (w *relayWriter) Write(b []byte) (int, error) {
	if w.p == nil {
		w.p = &lineParser{sink: w.sink}
	}
	for _, c := range b {
		w.p.feed(c)
	}
	return len(b), nil
}

// close flushes once the stream has ended. Safe on nil so the quiet path
// can call it unconditionally.
func (w *relayWriter) close() {
	if w == nil || w.p == nil {
		return
	}
	w.p.close()
}

// consoleSink renders to a terminal, using \r to rewrite progress lines in
// place the same way the server drew them.
type consoleSink struct {
	w      io.Writer
	prefix string
}

func (s *consoleSink) Update(line string) { fmt.Fprintf(s.w, "\r%s: %s", s.prefix, line) }
func (s *consoleSink) Line(line string)   { fmt.Fprintf(s.w, "%s: %s\n", s.prefix, line) }
func (s *consoleSink) EndUpdate()         { fmt.Fprintln(s.w) }

// logSink feeds the structured logger. Progress rewrites are demoted to
// debug so they do not flood aggregated logs.
type logSink struct {
	log    zerolog.Logger
	stream string
}

func (s *logSink) Update(line string) { s.log.Debug().Str("stream", s.stream).Msg(line) }
func (s *logSink) Line(line string)   { s.log.Info().Str("stream", s.stream).Msg(line) }
func (s *logSink) EndUpdate()         {}

// newSink picks the console renderer when stderr is a TTY and the logger
// otherwise.
func newSink(stream string, log zerolog.Logger) OutputSink {
	if isatty.IsTerminal(os.Stderr.Fd()) {
		return &consoleSink{w: os.Stderr, prefix: stream}
	}
	return &logSink{log: log, stream: stream}
}
