package reporters

import (
	"bufio"
	"fmt"
	"os"

	"github.com/san-kum/mbsim/internal/mechanics"
	"github.com/san-kum/mbsim/internal/multibody"
	"github.com/sirupsen/logrus"
)

// CSVWriter appends one line per report: the time followed by x, y, z of
// each body, every field terminated by ", ".
type CSVWriter struct {
	path   string
	bodies []mechanics.BodyID
	f      *os.File
	w      *bufio.Writer
	err    error
}

// NewCSVWriter creates (or truncates) path. The file stays open until Close.
func NewCSVWriter(path string, bodies ...mechanics.BodyID) (*CSVWriter, error) {
	logrus.Infof("Opening %s", path)
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("open csv writer: %w", err)
	}
	return &CSVWriter{
		path:   path,
		bodies: bodies,
		f:      f,
		w:      bufio.NewWriter(f),
	}, nil
}

func (c *CSVWriter) Name() string { return "csv" }
func (c *CSVWriter) Path() string { return c.path }

func (c *CSVWriter) Report(v *multibody.View) {
	if c.err != nil {
		return
	}
	if _, err := fmt.Fprintf(c.w, "%f, ", v.Time()); err != nil {
		c.err = err
		return
	}
	for _, b := range c.bodies {
		p := v.OriginLocation(b)
		if _, err := fmt.Fprintf(c.w, "%f, %f, %f, ", p.X, p.Y, p.Z); err != nil {
			c.err = err
			return
		}
	}
	if _, err := fmt.Fprintln(c.w); err != nil {
		c.err = err
	}
}

// Close flushes and closes the file and returns the first error seen by
// any report, the flush or the close.
func (c *CSVWriter) Close() error {
	if c.f == nil {
		return c.err
	}
	if err := c.w.Flush(); err != nil && c.err == nil {
		c.err = err
	}
	if err := c.f.Close(); err != nil && c.err == nil {
		c.err = err
	}
	c.f = nil
	logrus.Info("Closed")
	if c.err != nil {
		return fmt.Errorf("csv %s: %w", c.path, c.err)
	}
	return nil
}
