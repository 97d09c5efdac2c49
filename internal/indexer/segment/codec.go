package segment

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var errTruncated = errors.New("section truncated")

type encoder struct {
	buf []byte
}

func (e *encoder) uvarint(v uint64) {
	e.buf = binary.AppendUvarint(e.buf, v)
}

func (e *encoder) int(v int) {
	e.uvarint(uint64(v))
}

func (e *encoder) string(s string) {
	e.int(len(s))
	e.buf = append(e.buf, s...)
}

type decoder struct {
	buf []byte
	off int
}

func (d *decoder) uvarint() (uint64, error) {
	v, n := binary.Uvarint(d.buf[d.off:])
	if n <= 0 {
		return 0, fmt.Errorf("%w at offset %d", errTruncated, d.off)
	}
	d.off += n
	return v, nil
}

func (d *decoder) int() (int, error) {
	v, err := d.uvarint()
	if err != nil {
		return 0, err
	}
	if v > math.MaxInt32 {
		return 0, fmt.Errorf("value %d out of range at offset %d", v, d.off)
	}
	return int(v), nil
}

func (d *decoder) string() (string, error) {
	n, err := d.int()
	if err != nil {
		return "", err
	}
	if n > len(d.buf)-d.off {
		return "", fmt.Errorf("%w: string of %d bytes at offset %d", errTruncated, n, d.off)
	}
	s := string(d.buf[d.off : d.off+n])
	d.off += n
	return s, nil
}

func (d *decoder) done() bool {
	return d.off >= len(d.buf)
}
