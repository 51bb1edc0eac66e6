// Copyright (c) 2020–2024 The remotelab developers. All rights reserved.
// Project site: https://github.com/gotmc/remotelab
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package remotelab

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// NaNToken marks a missing sample in a data block. gnuplot reads it as an
// undefined point rather than zero.
const NaNToken = "NaN"

// Series holds one or more sampled traces to be plotted together. The outer
// index selects the trace, the inner index the sample.
type Series [][]float64

// Rows returns the length of the longest trace.
func (s Series) Rows() int {
	n := 0
	for _, tr := range s {
		n = max(n, len(tr))
	}
	return n
}

// At returns sample i of trace j, or NaN when trace j is shorter than i+1.
func (s Series) At(j, i int) float64 {
	if i < len(s[j]) {
		return s[j][i]
	}
	return math.NaN()
}

// WriteDataBlock writes s as whitespace separated text: one line per sample
// index and one column per trace. Traces shorter than Rows are padded with
// NaNToken so every trace stays aligned on the same index axis.
func WriteDataBlock(w io.Writer, s Series) error {
	rows := s.Rows()
	var buf []byte
	for i := 0; i < rows; i++ {
		buf = buf[:0]
		for j := range s {
			if j > 0 {
				buf = append(buf, ' ')
			}
			buf = appendSample(buf, s.At(j, i))
		}
		buf = append(buf, '\n')
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	return nil
}

func appendSample(buf []byte, v float64) []byte {
	if math.IsNaN(v) {
		return append(buf, NaNToken...)
	}
	return strconv.AppendFloat(buf, v, 'g', -1, 64)
}

// ParseDataBlock reads text written by WriteDataBlock. Blank lines and lines
// starting with '#' are skipped. Trailing NaN samples of each trace are
// dropped, which undoes the padding WriteDataBlock adds.
func ParseDataBlock(r io.Reader) (Series, error) {
	var s Series
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if s == nil {
			s = make(Series, len(fields))
		}
		if len(fields) != len(s) {
			return nil, fmt.Errorf("line %d: want %d columns, got %d", line, len(s), len(fields))
		}
		for j, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %d: %w", line, j+1, err)
			}
			s[j] = append(s[j], v)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	for j, tr := range s {
		n := len(tr)
		for n > 0 && math.IsNaN(tr[n-1]) {
			n--
		}
		s[j] = tr[:n]
	}
	return s, nil
}

// SaveDataBlock writes s to the named file with a short header comment.
func SaveDataBlock(name string, s Series) (err error) {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "# %d traces, %d samples\n", len(s), s.Rows())
	if err := WriteDataBlock(w, s); err != nil {
		return err
	}
	return w.Flush()
}

// LoadDataBlock reads a file written by SaveDataBlock.
func LoadDataBlock(name string) (Series, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseDataBlock(f)
}
