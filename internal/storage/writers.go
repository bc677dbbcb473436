package storage

import (
	"bufio"
	"io"
	"strconv"

	"github.com/san-kum/chsim/internal/lattice"
)

type truncater interface {
	Truncate(size int64) error
}

// SnapshotWriter emits lattice frames to a stream. In rewind mode every
// frame replaces the previous one: the stream is sought back to offset 0
// and, when it supports Truncate, cut to the new frame's length.
type SnapshotWriter struct {
	w      io.Writer
	rewind bool
	frames int
}

func NewSnapshotWriter(w io.Writer, rewind bool) *SnapshotWriter {
	return &SnapshotWriter{w: w, rewind: rewind}
}

func (sw *SnapshotWriter) Write(l *lattice.Lattice) error {
	if sw.rewind {
		if s, ok := sw.w.(io.Seeker); ok {
			if _, err := s.Seek(0, io.SeekStart); err != nil {
				return err
			}
		}
	}
	n, err := l.WriteTo(sw.w)
	if err != nil {
		return err
	}
	if sw.rewind {
		if t, ok := sw.w.(truncater); ok {
			if err := t.Truncate(n); err != nil {
				return err
			}
		}
	}
	sw.frames++
	return nil
}

// Frames is the number of frames written so far.
func (sw *SnapshotWriter) Frames() int { return sw.frames }

// EnergyLog writes "<step> <energy>" lines, the energy in the shortest
// representation that round-trips.
type EnergyLog struct {
	bw  *bufio.Writer
	buf []byte
}

func NewEnergyLog(w io.Writer) *EnergyLog {
	return &EnergyLog{bw: bufio.NewWriter(w), buf: make([]byte, 0, 48)}
}

func (el *EnergyLog) Log(step int, energy float64) error {
	b := strconv.AppendInt(el.buf[:0], int64(step), 10)
	b = append(b, ' ')
	b = strconv.AppendFloat(b, energy, 'g', -1, 64)
	b = append(b, '\n')
	el.buf = b
	_, err := el.bw.Write(b)
	return err
}

func (el *EnergyLog) Flush() error { return el.bw.Flush() }
