// Package dynamo provides the staged state cache shared by every part of the
// simulator.
//
// A [State] carries time, generalized positions q and speeds u, and a cache of
// derived quantities. Each cached quantity belongs to a [Stage]; the state
// records the highest stage realized so far:
//
//	Topology < Model < Instance < Time < Position < Velocity < Dynamics < Acceleration
//
// Realization is driven by a [Realizer] (normally the multibody system) and is
// idempotent and monotone: asking for a stage that is already realized is a
// no-op, otherwise every missing stage is computed in ascending order.
// Assigning t, q or u invalidates the stages that depend on it.
//
// # Example
//
//	st := sys.RealizeTopology()
//	st.SetUAt(0, 10)
//	if err := st.Realize(sys, dynamo.StagePosition); err != nil {
//	    return err
//	}
//
// # Failure
//
// Reading an unrealized stage or realizing a state built for another topology
// are programming errors. They panic with a [*StageError]; the stepper
// recovers these at its top-level entry point and reports a failed run.
package dynamo
