// Package viz renders a running simulation in the terminal.
//
// A [LiveReporter] is registered with the stepper like any other reporter
// and forwards each sample to a Bubble Tea program running [Model], which
// draws bodies, springs and dampers on a braille [Canvas] next to an
// energy plot.
//
// # Key Bindings
//
//	Space - Freeze/unfreeze the display
//	T     - Cycle color themes
//	?     - Show help overlay
//	Q     - Quit
package viz
