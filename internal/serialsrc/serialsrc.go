// Package serialsrc reads pulse trains printed by a sniffer board on a
// serial line, one train per line.
//
// Two line formats are understood: the gateway format written by
// rftrx.DisplaySignal (anything containing "Pulses(uSec)=a,b,c;") and a bare
// list of widths in microseconds separated by commas or blanks.
package serialsrc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/tarm/serial"
)

const pulsesTag = "Pulses(uSec)="

var ErrNoPulses = errors.New("line holds no pulses")

// ParseLine extracts the pulse widths from one line.
func ParseLine(line string) ([]uint32, error) {
	line = strings.TrimSpace(line)
	if i := strings.Index(line, pulsesTag); i >= 0 {
		line = line[i+len(pulsesTag):]
		if j := strings.IndexByte(line, ';'); j >= 0 {
			line = line[:j]
		}
	}
	fields := strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	if len(fields) == 0 {
		return nil, ErrNoPulses
	}
	out := make([]uint32, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseUint(f, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("bad pulse %q: %w", f, err)
		}
		if v == 0 {
			return nil, fmt.Errorf("bad pulse %q: zero width", f)
		}
		out = append(out, uint32(v))
	}
	return out, nil
}

// Source turns lines into pulse trains.
type Source struct {
	rc io.ReadCloser
	sc *bufio.Scanner
	// Logger reports lines that could not be parsed. Nil discards them.
	Logger *log.Logger
}

func NewSource(rc io.ReadCloser) *Source {
	sc := bufio.NewScanner(rc)
	// a full buffer of five digit pulses does not fit the default
	sc.Buffer(make([]byte, 0, 16*1024), 64*1024)
	return &Source{rc: rc, sc: sc}
}

// Open opens a serial port
func Open(port string, baud int) (*Source, error) {
	p, err := serial.OpenPort(&serial.Config{Name: port, Baud: baud})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", port, err)
	}
	return NewSource(p), nil
}

// Next returns the next parsable train, skipping anything else. It returns
// io.EOF when the input ends.
func (s *Source) Next() ([]uint32, error) {
	for s.sc.Scan() {
		line := s.sc.Text()
		pulses, err := ParseLine(line)
		if err != nil {
			if s.Logger != nil && !errors.Is(err, ErrNoPulses) {
				s.Logger.Printf("Skipping line %q: %v", line, err)
			}
			continue
		}
		return pulses, nil
	}
	if err := s.sc.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// Trains delivers trains on the returned channel until the input ends or
// ctx is cancelled. The channel is closed on return.
func (s *Source) Trains(ctx context.Context) <-chan []uint32 {
	out := make(chan []uint32, 8)
	go func() {
		defer close(out)
		for {
			pulses, err := s.Next()
			if err != nil {
				if !errors.Is(err, io.EOF) && s.Logger != nil {
					s.Logger.Printf("Serial read failed: %v", err)
				}
				return
			}
			select {
			case out <- pulses:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (s *Source) Close() error {
	return s.rc.Close()
}
