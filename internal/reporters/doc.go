// Package reporters provides the sinks the stepper fires at scheduled
// instants: console and CSV position writers, an in-memory recorder and an
// energy monitor.
package reporters
