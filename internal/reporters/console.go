package reporters

import (
	"fmt"
	"io"

	"github.com/san-kum/mbsim/internal/mechanics"
	"github.com/san-kum/mbsim/internal/multibody"
)

// Console prints time and a body's origin, one line per report. The writer
// is not closed; Close only returns the first write error.
type Console struct {
	w    io.Writer
	body mechanics.BodyID
	err  error
}

func NewConsole(w io.Writer, body mechanics.BodyID) *Console {
	return &Console{w: w, body: body}
}

func (c *Console) Name() string { return "console" }

func (c *Console) Report(v *multibody.View) {
	if c.err != nil {
		return
	}
	p := v.OriginLocation(c.body)
	if _, err := fmt.Fprintf(c.w, "%10.2f    %10.4f  %10.4f  %10.4f\n", v.Time(), p.X, p.Y, p.Z); err != nil {
		c.err = fmt.Errorf("console: %w", err)
	}
}

func (c *Console) Close() error { return c.err }
