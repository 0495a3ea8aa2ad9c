package grid

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Tolerance is the relative slack on the right-hand side of every constraint:
// sum_j a[j]*x[j] <= b + Tolerance*(|b| + sum_j |a[j]*x[j]|). A constraint
// rewritten by ToLatticeSpace measures that scale in real coordinates too, so
// both forms accept the same lattice points on boxes of any magnitude.
const Tolerance = 1e-9

// origin remembers the real-space scale of a lattice-space constraint: the
// original bound and, per coefficient, a[j]*low[j].
type origin struct {
	b     float64
	shift []float64
}

// bound is the |b| part of the slack scale; b is the receiver's own bound.
func (o *origin) bound(b float64) float64 {
	if o == nil {
		return math.Abs(b)
	}
	return math.Abs(o.b)
}

// term maps the k-th lattice term back to its real-space value a[j]*x[j].
func (o *origin) term(k int, t float64) float64 {
	if o == nil {
		return t
	}
	return o.shift[k] + t
}

func within(sum, b, scale float64) bool {
	return sum <= b+Tolerance*scale
}

// Constraint is a linear inequality sum_j a[j]*x[j] <= b with a[j] >= 0, or a
// conjunction of such inequalities. The set of implementations is closed:
// *Dense, *Sparse and *Conjunction.
type Constraint interface {
	// Validate reports ErrInvalidConstraint for negative coefficients or
	// malformed index lists.
	Validate() error
	// Holds evaluates the constraint at a real point. A point shorter than
	// Arity never satisfies it.
	Holds(x []float64) bool
	// HoldsLattice evaluates the constraint at integer coordinates. It is only
	// meaningful on a constraint returned by ToLatticeSpace.
	HoldsLattice(p []int) bool
	// ToLatticeSpace rewrites the constraint over g's lattice coordinates.
	ToLatticeSpace(g *Grid) (Constraint, error)
	// Equal reports structural equality: same variant, indices, coefficients and bound.
	Equal(other Constraint) bool
	// Arity is the minimum vector length the constraint reads.
	Arity() int
	// TrivialInUnitCube reports whether every point of [0,1]^n satisfies it.
	TrivialInUnitCube() bool
	String() string

	sealed()
}

// Dense is sum_j A[j]*x[j] <= B over the leading len(A) dimensions.
type Dense struct {
	a []float64
	b float64
	o *origin // set on lattice-space rewrites
}

// NewDense builds a dense constraint. The coefficients are copied.
func NewDense(a []float64, b float64) (*Dense, error) {
	if len(a) == 0 {
		return nil, fmt.Errorf("%w: dense constraint needs at least one coefficient", ErrInvalidConstraint)
	}
	d := &Dense{a: append([]float64(nil), a...), b: b}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// DenseSimplex returns x_0 + ... + x_{n-1} <= 1.
func DenseSimplex(n int) *Dense {
	a := make([]float64, n)
	for i := range a {
		a[i] = 1
	}
	d, err := NewDense(a, 1)
	if err != nil {
		panic(err)
	}
	return d
}

// Coefficients returns a copy of the coefficients.
func (d *Dense) Coefficients() []float64 { return append([]float64(nil), d.a...) }

// Bound returns the right-hand side.
func (d *Dense) Bound() float64 { return d.b }

func (d *Dense) Validate() error {
	for i, v := range d.a {
		if v < 0 {
			return fmt.Errorf("%w: negative coefficient a[%d]=%g", ErrInvalidConstraint, i, v)
		}
	}
	return nil
}

func (d *Dense) Holds(x []float64) bool {
	if len(x) < len(d.a) {
		return false
	}
	var sum float64
	scale := math.Abs(d.b)
	for i, v := range d.a {
		t := v * x[i]
		sum += t
		scale += math.Abs(t)
	}
	return within(sum, d.b, scale)
}

func (d *Dense) HoldsLattice(p []int) bool {
	if len(p) < len(d.a) {
		return false
	}
	var sum float64
	scale := d.o.bound(d.b)
	for i, v := range d.a {
		t := v * float64(p[i])
		sum += t
		scale += math.Abs(d.o.term(i, t))
	}
	return within(sum, d.b, scale)
}

func (d *Dense) ToLatticeSpace(g *Grid) (Constraint, error) {
	if len(d.a) > g.Dim() {
		return nil, fmt.Errorf("%w: dense constraint over %d dimensions, grid has %d", ErrDimensionMismatch, len(d.a), g.Dim())
	}
	q := &Dense{a: make([]float64, len(d.a)), b: d.b, o: &origin{b: d.b, shift: make([]float64, len(d.a))}}
	for i, v := range d.a {
		q.o.shift[i] = v * g.low.x[i]
		q.b -= q.o.shift[i]
		q.a[i] = v * g.CellWidth(i)
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return q, nil
}

func (d *Dense) Equal(other Constraint) bool {
	o, ok := other.(*Dense)
	if !ok || o.b != d.b || len(o.a) != len(d.a) {
		return false
	}
	for i := range d.a {
		if o.a[i] != d.a[i] {
			return false
		}
	}
	return true
}

func (d *Dense) Arity() int { return len(d.a) }

func (d *Dense) TrivialInUnitCube() bool {
	var sum float64
	for _, v := range d.a {
		sum += v
	}
	return sum <= d.b
}

func (d *Dense) String() string {
	terms := make([]string, len(d.a))
	for i, v := range d.a {
		terms[i] = formatTerm(v, i)
	}
	return "(" + strings.Join(terms, " + ") + " <= " + strconv.FormatFloat(d.b, 'g', -1, 64) + ")"
}

func (*Dense) sealed() {}

// Sparse is sum_k Coeffs[k]*x[Indices[k]] <= B with strictly increasing indices.
type Sparse struct {
	ind []int
	val []float64
	b   float64
	o   *origin // set on lattice-space rewrites
}

// NewSparse builds a sparse constraint. Indices must be non-negative and
// strictly increasing; coefficients must be non-negative.
func NewSparse(indices []int, coeffs []float64, b float64) (*Sparse, error) {
	s := &Sparse{
		ind: append([]int(nil), indices...),
		val: append([]float64(nil), coeffs...),
		b:   b,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// SparseSimplex returns sum_{i in indices} x_i <= 1. The caller must supply
// sorted, duplicate-free indices.
func SparseSimplex(indices []int) (*Sparse, error) {
	coeffs := make([]float64, len(indices))
	for i := range coeffs {
		coeffs[i] = 1
	}
	return NewSparse(indices, coeffs, 1)
}

// SimplexWeighted returns sum_{i in Z} x_i <= 1 for an unsorted index list that
// may repeat entries. Indices are sorted and each repetition adds one to the
// weight of that index.
func SimplexWeighted(indices []int) (*Sparse, error) {
	z := append([]int(nil), indices...)
	sort.Ints(z)

	var ind []int
	var val []float64
	for i, k := range z {
		if i == 0 || k != z[i-1] {
			ind = append(ind, k)
			val = append(val, 1)
			continue
		}
		val[len(val)-1]++
	}
	return NewSparse(ind, val, 1)
}

// Indices returns a copy of the index list.
func (s *Sparse) Indices() []int { return append([]int(nil), s.ind...) }

// Coefficients returns a copy of the coefficients, aligned with Indices.
func (s *Sparse) Coefficients() []float64 { return append([]float64(nil), s.val...) }

// Bound returns the right-hand side.
func (s *Sparse) Bound() float64 { return s.b }

func (s *Sparse) Validate() error {
	if len(s.ind) != len(s.val) {
		return fmt.Errorf("%w: %d indices but %d coefficients", ErrInvalidConstraint, len(s.ind), len(s.val))
	}
	for i := range s.val {
		if s.ind[i] < 0 {
			return fmt.Errorf("%w: negative index %d in %s", ErrInvalidConstraint, s.ind[i], s)
		}
		if i > 0 && s.ind[i] <= s.ind[i-1] {
			return fmt.Errorf("%w: indices not strictly increasing in %s", ErrInvalidConstraint, s)
		}
		if s.val[i] < 0 {
			return fmt.Errorf("%w: negative coefficient %g for x[%d]", ErrInvalidConstraint, s.val[i], s.ind[i])
		}
	}
	return nil
}

func (s *Sparse) Holds(x []float64) bool {
	if len(x) < s.Arity() {
		return false
	}
	var sum float64
	scale := math.Abs(s.b)
	for i, k := range s.ind {
		t := s.val[i] * x[k]
		sum += t
		scale += math.Abs(t)
	}
	return within(sum, s.b, scale)
}

func (s *Sparse) HoldsLattice(p []int) bool {
	if len(p) < s.Arity() {
		return false
	}
	var sum float64
	scale := s.o.bound(s.b)
	for i, k := range s.ind {
		t := s.val[i] * float64(p[k])
		sum += t
		scale += math.Abs(s.o.term(i, t))
	}
	return within(sum, s.b, scale)
}

func (s *Sparse) ToLatticeSpace(g *Grid) (Constraint, error) {
	if s.Arity() > g.Dim() {
		return nil, fmt.Errorf("%w: constraint reads x[%d], grid has %d dimensions", ErrDimensionMismatch, s.Arity()-1, g.Dim())
	}
	q := &Sparse{ind: s.ind, val: make([]float64, len(s.val)), b: s.b, o: &origin{b: s.b, shift: make([]float64, len(s.val))}}
	for i, k := range s.ind {
		q.o.shift[i] = s.val[i] * g.low.x[k]
		q.b -= q.o.shift[i]
		q.val[i] = s.val[i] * g.CellWidth(k)
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return q, nil
}

func (s *Sparse) Equal(other Constraint) bool {
	o, ok := other.(*Sparse)
	if !ok || o.b != s.b || len(o.ind) != len(s.ind) || len(o.val) != len(s.val) {
		return false
	}
	for i := range s.ind {
		if o.ind[i] != s.ind[i] || o.val[i] != s.val[i] {
			return false
		}
	}
	return true
}

func (s *Sparse) Arity() int {
	if len(s.ind) == 0 {
		return 0
	}
	return s.ind[len(s.ind)-1] + 1
}

func (s *Sparse) TrivialInUnitCube() bool {
	var sum float64
	for _, v := range s.val {
		sum += v
	}
	return sum <= s.b
}

func (s *Sparse) String() string {
	terms := make([]string, len(s.ind))
	for i, k := range s.ind {
		terms[i] = formatTerm(s.val[i], k)
	}
	return "(" + strings.Join(terms, " + ") + " <= " + strconv.FormatFloat(s.b, 'g', -1, 64) + ")"
}

func (*Sparse) sealed() {}

// Conjunction holds when every member holds.
type Conjunction struct {
	members []Constraint
}

// NewConjunction validates and groups the members. An empty conjunction
// accepts every point.
func NewConjunction(members ...Constraint) (*Conjunction, error) {
	c := &Conjunction{members: append([]Constraint(nil), members...)}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Members returns a copy of the member list.
func (c *Conjunction) Members() []Constraint { return append([]Constraint(nil), c.members...) }

// Len returns the number of members.
func (c *Conjunction) Len() int { return len(c.members) }

// AppendUnique returns a conjunction extended by m, unless m is satisfied by
// the whole unit cube or is structurally equal to an existing member. The
// boolean reports whether m was added.
func (c *Conjunction) AppendUnique(m Constraint) (*Conjunction, bool) {
	if m.TrivialInUnitCube() {
		slog.Debug("Skipping constraint trivial in unit cube", "constraint", m.String())
		return c, false
	}
	for _, o := range c.members {
		if o.Equal(m) {
			slog.Debug("Skipping duplicate constraint", "constraint", m.String())
			return c, false
		}
	}
	slog.Debug("Adding constraint", "constraint", m.String())
	members := make([]Constraint, len(c.members), len(c.members)+1)
	copy(members, c.members)
	return &Conjunction{members: append(members, m)}, true
}

func (c *Conjunction) Validate() error {
	for i, m := range c.members {
		if m == nil {
			return fmt.Errorf("%w: conjunction member %d is nil", ErrInvalidConstraint, i)
		}
		if err := m.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Conjunction) Holds(x []float64) bool {
	for _, m := range c.members {
		if !m.Holds(x) {
			return false
		}
	}
	return true
}

func (c *Conjunction) HoldsLattice(p []int) bool {
	for _, m := range c.members {
		if !m.HoldsLattice(p) {
			return false
		}
	}
	return true
}

func (c *Conjunction) ToLatticeSpace(g *Grid) (Constraint, error) {
	q := &Conjunction{members: make([]Constraint, len(c.members))}
	for i, m := range c.members {
		lm, err := m.ToLatticeSpace(g)
		if err != nil {
			return nil, err
		}
		q.members[i] = lm
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return q, nil
}

func (c *Conjunction) Equal(other Constraint) bool {
	o, ok := other.(*Conjunction)
	if !ok || len(o.members) != len(c.members) {
		return false
	}
	for i := range c.members {
		if !c.members[i].Equal(o.members[i]) {
			return false
		}
	}
	return true
}

func (c *Conjunction) Arity() int {
	n := 0
	for _, m := range c.members {
		n = max(n, m.Arity())
	}
	return n
}

func (c *Conjunction) TrivialInUnitCube() bool {
	for _, m := range c.members {
		if !m.TrivialInUnitCube() {
			return false
		}
	}
	return true
}

func (c *Conjunction) String() string {
	parts := make([]string, len(c.members))
	for i, m := range c.members {
		parts[i] = m.String()
	}
	return "[" + strings.Join(parts, " && ") + "]"
}

func (*Conjunction) sealed() {}

func formatTerm(coeff float64, index int) string {
	if coeff == 1 {
		return "x[" + strconv.Itoa(index) + "]"
	}
	return strconv.FormatFloat(coeff, 'g', -1, 64) + "*x[" + strconv.Itoa(index) + "]"
}
