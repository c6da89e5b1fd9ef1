package reporters

import "github.com/san-kum/mbsim/internal/multibody"

// Func adapts a plain function to a reporter.
type Func func(v *multibody.View)

func (f Func) Report(v *multibody.View) { f(v) }
