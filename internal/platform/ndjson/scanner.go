package ndjson

import (
	"bufio"
	"bytes"
	"io"
)

// Scanner yields complete newline-terminated lines from r regardless of
// how the underlying reads are chunked. Blank lines are skipped. A final
// unterminated line is discarded: a producer that died mid-write must not
// surface a half record as if it were complete.
type Scanner struct {
	r    *bufio.Reader
	line []byte
	err  error
	done bool
}

func NewScanner(r io.Reader) *Scanner {
	return &Scanner{r: bufio.NewReader(r)}
}

// Scan advances to the next non-blank complete line. It returns false at
// EOF or on read error; Err reports the error, nil after a clean EOF.
func (s *Scanner) Scan() bool {
	if s.done {
		return false
	}
	for {
		raw, err := s.r.ReadBytes('\n')
		if err != nil {
			// Whatever was read without a terminator is dropped.
			s.done = true
			if err != io.EOF {
				s.err = err
			}
			return false
		}
		line := bytes.TrimRight(raw, "\r\n")
		if len(line) == 0 {
			continue
		}
		s.line = line
		return true
	}
}

// Bytes returns the current line without its terminator. The slice is
// valid until the next call to Scan.
func (s *Scanner) Bytes() []byte {
	return s.line
}

func (s *Scanner) Err() error {
	return s.err
}
