// Package mechanics implements the kinematic body tree.
//
// Bodies hang from a fixed ground frame through joints. A body's pose is
//
//	X_GB = X_GP · X_PF · X_FM(q) · X_BM⁻¹
//
// where X_PF places the joint frame F on the parent, X_BM places the joint
// frame M on the body, and X_FM(q) is the joint's instantaneous transform.
// Joints are translational ([Slider], [Weld]), so body orientations are
// constant and the mass matrix is exact without velocity-product terms.
//
// Poses are realized at [dynamo.StagePosition] and spatial velocities at
// [dynamo.StageVelocity]; every query checks the stage first.
package mechanics
