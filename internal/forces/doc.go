// Package forces accumulates applied loads into generalized forces.
//
// A [Subsystem] holds force elements, each pairing attachment points with a
// law from a closed set:
//
//   - [Spring]: linear spring along the line between two stations
//   - [Damper]: linear damper along the same line
//   - [ConstantForce]: fixed ground-frame force at one station
//   - [Gravity]: uniform field acting at every body's center of mass
//
// Laws outside the set are registered through [Custom].
//
// Accumulation requires the state to be realized through Velocity and is a
// pure function of that state:
//
//	f := forces.NewSubsystem()
//	f.Add(forces.TwoPointLinearSpring(mechanics.Ground, r3.Vec{}, block, r3.Vec{}, 10, 10))
//	q, err := f.Accumulate(tree, st)
package forces
