package mechanics

import (
	"errors"
	"math"
	"testing"

	. "github.com/onsi/gomega"
	"github.com/san-kum/mbsim/internal/dynamo"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// kinematics realizes only the tree stages.
type kinematics struct{ tree *Tree }

func (k kinematics) Generation() uint64 { return k.tree.Generation() }

func (k kinematics) RealizeStage(st *dynamo.State, stage dynamo.Stage) error {
	switch stage {
	case dynamo.StagePosition:
		k.tree.RealizePosition(st)
	case dynamo.StageVelocity:
		k.tree.RealizeVelocity(st)
	}
	return nil
}

func slidingBlock(t *testing.T) (*Tree, BodyID) {
	t.Helper()
	tree := NewTree()
	id, err := tree.AddBody("block1", Ground, Translation(r3.Vec{X: 10}),
		MassProperties{Mass: 2, Inertia: NewInertia(1)}, IdentityTransform(), Slider)
	if err != nil {
		t.Fatalf("AddBody: %v", err)
	}
	tree.RealizeTopology()
	return tree, id
}

func vecClose(g *WithT, got, want r3.Vec) {
	g.Expect(got.X).To(BeNumerically("~", want.X, 1e-12))
	g.Expect(got.Y).To(BeNumerically("~", want.Y, 1e-12))
	g.Expect(got.Z).To(BeNumerically("~", want.Z, 1e-12))
}

func TestTree_SliderPose(t *testing.T) {
	g := NewWithT(t)
	tree, block := slidingBlock(t)
	st := tree.DefaultState()

	g.Expect(tree.SetQ(st, block, 1.5)).To(Succeed())
	g.Expect(tree.SetU(st, block, 10)).To(Succeed())
	g.Expect(st.Realize(kinematics{tree}, dynamo.StageVelocity)).To(Succeed())

	vecClose(g, tree.OriginLocation(st, block), r3.Vec{X: 11.5})
	vecClose(g, tree.StationLocation(st, block, r3.Vec{Y: 1}), r3.Vec{X: 11.5, Y: 1})
	vecClose(g, tree.SliderAxis(st, block), r3.Vec{X: 1})
	vecClose(g, tree.VelocityOf(st, block).Linear, r3.Vec{X: 10})
	g.Expect(tree.KineticEnergy(st)).To(BeNumerically("~", 100, 1e-12))
}

func TestTree_RotatedFrameAndBodyOffset(t *testing.T) {
	g := NewWithT(t)
	tree := NewTree()
	inParent := Transform{R: RotationAbout(math.Pi/2, r3.Vec{Z: 1}), P: r3.Vec{X: 1}}
	inBody := Translation(r3.Vec{X: 0.5})
	id, err := tree.AddBody("b", Ground, inParent, MassProperties{Mass: 1}, inBody, Slider)
	g.Expect(err).NotTo(HaveOccurred())
	tree.RealizeTopology()

	st := tree.DefaultState()
	g.Expect(tree.SetQ(st, id, 2)).To(Succeed())
	g.Expect(st.Realize(kinematics{tree}, dynamo.StagePosition)).To(Succeed())

	// F's x axis points along ground y; the body origin sits 0.5 behind M.
	vecClose(g, tree.SliderAxis(st, id), r3.Vec{Y: 1})
	vecClose(g, tree.OriginLocation(st, id), r3.Vec{X: 1, Y: 1.5})
}

func TestTree_ChainMassMatrixAndProjection(t *testing.T) {
	g := NewWithT(t)
	tree := NewTree()
	a, err := tree.AddBody("a", Ground, IdentityTransform(), MassProperties{Mass: 2}, IdentityTransform(), Slider)
	g.Expect(err).NotTo(HaveOccurred())
	up := Transform{R: RotationAbout(math.Pi/2, r3.Vec{Z: 1})}
	b, err := tree.AddBody("b", a, up, MassProperties{Mass: 3}, IdentityTransform(), Slider)
	g.Expect(err).NotTo(HaveOccurred())
	c, err := tree.AddBody("c", b, Translation(r3.Vec{Z: 1}), MassProperties{Mass: 1}, IdentityTransform(), Weld)
	g.Expect(err).NotTo(HaveOccurred())
	tree.RealizeTopology()
	g.Expect(tree.NQ()).To(Equal(2))
	g.Expect(tree.NU()).To(Equal(2))

	st := tree.DefaultState()
	g.Expect(st.Realize(kinematics{tree}, dynamo.StagePosition)).To(Succeed())

	// Orthogonal axes decouple the mobilities: a carries everything, b
	// carries itself and the welded c.
	m := tree.MassMatrix(st)
	want := mat.NewSymDense(2, []float64{6, 0, 0, 4})
	g.Expect(mat.EqualApprox(m, want, 1e-12)).To(BeTrue())

	q := make(dynamo.Vector, 2)
	tree.ApplyStationForce(st, c, r3.Vec{}, r3.Vec{X: 3, Y: -4, Z: 7}, q)
	g.Expect(q[0]).To(BeNumerically("~", 3, 1e-12))
	g.Expect(q[1]).To(BeNumerically("~", -4, 1e-12))
}

func TestTree_ParallelChainCouples(t *testing.T) {
	g := NewWithT(t)
	tree := NewTree()
	a, _ := tree.AddBody("a", Ground, IdentityTransform(), MassProperties{Mass: 1}, IdentityTransform(), Slider)
	_, err := tree.AddBody("b", a, IdentityTransform(), MassProperties{Mass: 2}, IdentityTransform(), Slider)
	g.Expect(err).NotTo(HaveOccurred())
	tree.RealizeTopology()

	st := tree.DefaultState()
	st.SetU(dynamo.Vector{1, 1})
	g.Expect(st.Realize(kinematics{tree}, dynamo.StageVelocity)).To(Succeed())

	m := tree.MassMatrix(st)
	g.Expect(mat.EqualApprox(m, mat.NewSymDense(2, []float64{3, 2, 2, 2}), 1e-12)).To(BeTrue())
	// b moves at the sum of both speeds.
	g.Expect(tree.KineticEnergy(st)).To(BeNumerically("~", 0.5*1+0.5*2*4, 1e-12))
}

func TestTree_AddBodyValidation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		parent  BodyID
		mass    MassProperties
		wantErr error
	}{
		{"unknown parent", "x", 7, MassProperties{Mass: 1}, ErrUnknownBody},
		{"duplicate", "ground", Ground, MassProperties{Mass: 1}, ErrDuplicateBody},
		{"negative mass", "x", Ground, MassProperties{Mass: -1}, nil},
		{"negative inertia", "x", Ground, MassProperties{Mass: 1, Inertia: NewInertia(-1)}, nil},
		{"empty name", "", Ground, MassProperties{Mass: 1}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewWithT(t)
			tree := NewTree()
			gen := tree.Generation()
			_, err := tree.AddBody(tt.body, tt.parent, IdentityTransform(), tt.mass, IdentityTransform(), Slider)
			g.Expect(err).To(HaveOccurred())
			if tt.wantErr != nil {
				g.Expect(errors.Is(err, tt.wantErr)).To(BeTrue(), "got %v", err)
			}
			g.Expect(tree.Generation()).To(Equal(gen))
		})
	}
}

func TestTree_TopologyChangeRejectsOldState(t *testing.T) {
	g := NewWithT(t)
	tree, _ := slidingBlock(t)
	st := tree.DefaultState()

	_, err := tree.AddBody("block2", Ground, IdentityTransform(), MassProperties{Mass: 1}, IdentityTransform(), Slider)
	g.Expect(err).NotTo(HaveOccurred())
	tree.RealizeTopology()

	g.Expect(func() { _ = st.Realize(kinematics{tree}, dynamo.StagePosition) }).To(PanicWith(
		MatchError(dynamo.ErrTopologyChanged)))
}

func TestTree_QueriesRequireStage(t *testing.T) {
	g := NewWithT(t)
	tree, block := slidingBlock(t)
	st := tree.DefaultState()

	g.Expect(func() { tree.PoseOf(st, block) }).To(Panic())
	g.Expect(st.Realize(kinematics{tree}, dynamo.StagePosition)).To(Succeed())
	g.Expect(func() { tree.VelocityOf(st, block) }).To(Panic())

	g.Expect(tree.SetU(st, Ground, 1)).To(MatchError(ErrNotMobile))
	g.Expect(st.Stage()).To(Equal(dynamo.StagePosition))
	g.Expect(tree.SetQ(st, block, 1)).To(Succeed())
	g.Expect(st.Stage()).To(Equal(dynamo.StageTime))
}

func TestTree_UnrealizedTopologyPanics(t *testing.T) {
	g := NewWithT(t)
	tree := NewTree()
	_, _ = tree.AddBody("b", Ground, IdentityTransform(), MassProperties{Mass: 1}, IdentityTransform(), Slider)
	g.Expect(func() { tree.DefaultState() }).To(Panic())
}

func TestRotation_ComposeAndInverse(t *testing.T) {
	g := NewWithT(t)
	r := RotationAbout(math.Pi/2, r3.Vec{Z: 1})
	vecClose(g, r.Apply(r3.Vec{X: 1}), r3.Vec{Y: 1})
	vecClose(g, r.Compose(r).Apply(r3.Vec{X: 1}), r3.Vec{X: -1})
	vecClose(g, r.Inverse().Apply(r.Apply(r3.Vec{X: 1, Y: 2, Z: 3})), r3.Vec{X: 1, Y: 2, Z: 3})
	g.Expect(r.Angle()).To(BeNumerically("~", math.Pi/2, 1e-12))

	var zero Rotation
	vecClose(g, zero.Apply(r3.Vec{X: 1, Y: 2}), r3.Vec{X: 1, Y: 2})

	x := Transform{R: r, P: r3.Vec{X: 1}}
	vecClose(g, x.Inverse().Compose(x).Apply(r3.Vec{Z: 4}), r3.Vec{Z: 4})
}
