package dynamo

import "fmt"

// Realizer computes the cached quantities of one stage. It is implemented by
// the subsystem that owns the state's topology.
type Realizer interface {
	Generation() uint64
	RealizeStage(st *State, stage Stage) error
}

type cacheEntry struct {
	stage Stage
	value any
}

// State is the mutable simulation state: time, generalized positions and
// speeds, the realized-stage marker and the derived-quantity cache.
type State struct {
	t          float64
	q, u       Vector
	stage      Stage
	generation uint64
	cache      map[string]cacheEntry
}

// NewState returns a zero state for a topology with nq positions and nu
// speeds. The state starts realized through Topology.
func NewState(generation uint64, nq, nu int) *State {
	return &State{
		q:          make(Vector, nq),
		u:          make(Vector, nu),
		stage:      StageTopology,
		generation: generation,
		cache:      make(map[string]cacheEntry),
	}
}

func (s *State) Time() float64      { return s.t }
func (s *State) Stage() Stage       { return s.stage }
func (s *State) Generation() uint64 { return s.generation }
func (s *State) NQ() int            { return len(s.q) }
func (s *State) NU() int            { return len(s.u) }

// Q returns the generalized positions. The slice must not be modified; use
// SetQ or SetQAt so that dependent stages are invalidated.
func (s *State) Q() Vector { return s.q }

// U returns the generalized speeds. Same ownership rule as Q.
func (s *State) U() Vector { return s.u }

// Y returns a fresh copy of q followed by u.
func (s *State) Y() Vector { return Concat(s.q, s.u) }

func (s *State) SetTime(t float64) {
	s.t = t
	s.Invalidate(StageTime)
}

func (s *State) SetQ(q Vector) {
	s.checkLen("SetQ", len(q), len(s.q))
	copy(s.q, q)
	s.Invalidate(StagePosition)
}

func (s *State) SetU(u Vector) {
	s.checkLen("SetU", len(u), len(s.u))
	copy(s.u, u)
	s.Invalidate(StageVelocity)
}

func (s *State) SetQAt(i int, v float64) {
	s.q[i] = v
	s.Invalidate(StagePosition)
}

func (s *State) SetUAt(i int, v float64) {
	s.u[i] = v
	s.Invalidate(StageVelocity)
}

// SetY assigns q and u from a concatenated vector.
func (s *State) SetY(y Vector) {
	s.checkLen("SetY", len(y), len(s.q)+len(s.u))
	copy(s.q, y[:len(s.q)])
	copy(s.u, y[len(s.q):])
	s.Invalidate(StagePosition)
}

func (s *State) checkLen(op string, got, want int) {
	if got != want {
		panic(fmt.Errorf("%s: %w: got %d, want %d", op, ErrDimensionMismatch, got, want))
	}
}

// Invalidate lowers the realized marker below stage and drops every cached
// value that belongs to stage or above.
func (s *State) Invalidate(stage Stage) {
	if !stage.valid() {
		panic(&StageError{Op: "invalidate", Want: stage, Have: s.stage, Wrapped: ErrInvalidStage})
	}
	if s.stage >= stage {
		s.stage = stage.Prev()
	}
	for k, e := range s.cache {
		if e.stage >= stage {
			delete(s.cache, k)
		}
	}
}

// Realize brings the state up to stage by asking r to compute each missing
// stage in ascending order. The marker advances after every stage, so a
// failure leaves it at the last stage that succeeded.
func (s *State) Realize(r Realizer, stage Stage) error {
	if !stage.valid() {
		panic(&StageError{Op: "realize", Want: stage, Have: s.stage, Wrapped: ErrInvalidStage})
	}
	if r.Generation() != s.generation {
		panic(&StageError{Op: "realize", Want: stage, Have: s.stage, Wrapped: ErrTopologyChanged})
	}
	for s.stage < stage {
		next := s.stage.Next()
		if err := r.RealizeStage(s, next); err != nil {
			return fmt.Errorf("realize %v: %w", next, err)
		}
		s.stage = next
	}
	return nil
}

// RequireStage panics unless the state is realized through stage.
func (s *State) RequireStage(stage Stage, op string) {
	if s.stage < stage {
		panic(&StageError{Op: op, Want: stage, Have: s.stage, Wrapped: ErrStageNotRealized})
	}
}

// Put stores a derived value for stage. It is legal while stage is being
// realized or once it has been.
func (s *State) Put(key string, stage Stage, value any) {
	if s.stage < stage.Prev() {
		panic(&StageError{Op: "put " + key, Want: stage.Prev(), Have: s.stage, Wrapped: ErrStageNotRealized})
	}
	s.cache[key] = cacheEntry{stage: stage, value: value}
}

// Get returns the value stored for key at stage.
func (s *State) Get(key string, stage Stage) any {
	s.RequireStage(stage, "get "+key)
	e, ok := s.cache[key]
	if !ok || e.stage != stage {
		panic(&StageError{Op: "get " + key, Want: stage, Have: s.stage, Wrapped: ErrStageNotRealized})
	}
	return e.value
}

// Lookup is the typed form of Get.
func Lookup[T any](s *State, key string, stage Stage) T {
	return s.Get(key, stage).(T)
}

// Clone deep-copies t, q and u. Cached values are shared: they are never
// mutated after Put.
func (s *State) Clone() *State {
	c := &State{
		t:          s.t,
		q:          s.q.Clone(),
		u:          s.u.Clone(),
		stage:      s.stage,
		generation: s.generation,
		cache:      make(map[string]cacheEntry, len(s.cache)),
	}
	for k, e := range s.cache {
		c.cache[k] = e
	}
	return c
}
