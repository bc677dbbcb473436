package lattice

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Frames are written top row first (y = H-1 down to 0), columns left to
// right, every value as a signed fixed-point number with six decimals
// followed by one space. Plotting scripts depend on this exact layout.

// WriteTo writes the field as one text frame. It implements io.WriterTo.
func (l *Lattice) WriteTo(w io.Writer) (int64, error) {
	return l.writeGrid(w, l.At)
}

// WriteFreeEnergyDensityTo writes the free energy density field using the
// same layout as WriteTo.
func (l *Lattice) WriteFreeEnergyDensityTo(w io.Writer) (int64, error) {
	return l.writeGrid(w, l.FreeEnergyDensity)
}

func (l *Lattice) writeGrid(w io.Writer, value func(x, y int) float64) (int64, error) {
	bw := bufio.NewWriter(w)
	var total int64
	buf := make([]byte, 0, 32)
	for y := l.h - 1; y >= 0; y-- {
		for x := 0; x < l.w; x++ {
			buf = appendSigned(buf[:0], value(x, y))
			buf = append(buf, ' ')
			n, err := bw.Write(buf)
			total += int64(n)
			if err != nil {
				return total, err
			}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return total, err
		}
		total++
	}
	return total, bw.Flush()
}

// appendSigned matches fmt's %+.6f.
func appendSigned(buf []byte, v float64) []byte {
	start := len(buf)
	buf = strconv.AppendFloat(buf, v, 'f', 6, 64)
	if buf[start] != '-' && buf[start] != '+' {
		buf = append(buf, 0)
		copy(buf[start+1:], buf[start:len(buf)-1])
		buf[start] = '+'
	}
	return buf
}

// FrameReader reads successive text frames from a stream, such as a
// snapshot file holding a growing time series.
type FrameReader struct {
	br   *bufio.Reader
	line int
}

func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{br: bufio.NewReader(r)}
}

// Next decodes the next frame into l, whose shape decides how many rows and
// columns are expected. Blank lines between frames are skipped. It returns
// io.EOF when the stream holds no further frame.
func (fr *FrameReader) Next(l *Lattice) error {
	for row := 0; row < l.h; {
		text, err := fr.br.ReadString('\n')
		if text == "" && err != nil {
			if errors.Is(err, io.EOF) && row == 0 {
				return io.EOF
			}
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("%w: truncated after %d of %d rows", ErrMalformedFrame, row, l.h)
			}
			return err
		}
		fr.line++
		fields := strings.Fields(text)
		if len(fields) == 0 {
			if err != nil {
				if row == 0 {
					return io.EOF
				}
				return fmt.Errorf("%w: truncated after %d of %d rows", ErrMalformedFrame, row, l.h)
			}
			continue
		}
		if len(fields) != l.w {
			return fmt.Errorf("%w: line %d has %d values, want %d", ErrShapeMismatch, fr.line, len(fields), l.w)
		}
		y := l.h - 1 - row
		for x, f := range fields {
			v, perr := strconv.ParseFloat(f, 64)
			if perr != nil {
				return fmt.Errorf("%w: line %d: %v", ErrMalformedFrame, fr.line, perr)
			}
			l.data[x+y*l.w] = v
		}
		row++
	}
	return nil
}

// Decode reads a single frame from r into l. Anything but blank lines after
// the last row is a shape mismatch.
func Decode(r io.Reader, l *Lattice) error {
	fr := NewFrameReader(r)
	err := fr.Next(l)
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: empty input", ErrMalformedFrame)
	}
	if err != nil {
		return err
	}
	for {
		text, rerr := fr.br.ReadString('\n')
		if strings.TrimSpace(text) != "" {
			return fmt.Errorf("%w: frame has more than %d rows", ErrShapeMismatch, l.h)
		}
		if errors.Is(rerr, io.EOF) {
			return nil
		}
		if rerr != nil {
			return rerr
		}
	}
}
