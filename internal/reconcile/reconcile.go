package reconcile

import (
	"fmt"
	"sort"

	"github.com/arborlabs/arbor/pkg/domain"
)

// Kind classifies a compose site.
type Kind uint8

const (
	KindBranch     Kind = iota // mutually exclusive arms
	KindPositional             // loop without explicit key
	KindKeyed                  // loop with explicit key
	KindSingle                 // single keyed slot
)

func (k Kind) String() string {
	switch k {
	case KindBranch:
		return "branch"
	case KindPositional:
		return "positional"
	case KindKeyed:
		return "keyed"
	case KindSingle:
		return "single"
	}
	return "unknown"
}

// SlotKey identifies one composing position across passes.
type SlotKey struct {
	Site  string
	Kind  Kind
	Index int // positional slots
	Key   any // branch arm, keyed-iteration key, or single-slot key
}

// Request asks for a child instance at a slot with the given arguments.
// Owner is the binding that emitted the request; it scopes which slots are
// up for reconciliation when that binding re-executes.
type Request struct {
	Owner string
	Slot  SlotKey
	Def   *domain.ActorDefinition
	Args  []any
}

// Child is a live composed instance, as seen by the reconciler.
type Child interface {
	Update(args ...any) error
	Render() (any, error)
	Close(ignoreFinally bool) error
}

// Factory materializes a child instance. Creation is synchronous: the child
// has run its first update cycle when the factory returns.
type Factory func(req Request) (Child, error)

// Trace receives child churn callbacks for instrumentation.
type Trace interface {
	OnChildCreate(definition string)
	OnChildClose(definition string)
}

type entry struct {
	child Child
	def   string
	seq   int // creation order across the whole set
}

// Set is the slot table of one parent instance. It exclusively owns the
// children it maps; a slot maps to at most one live child at a time.
type Set struct {
	factory Factory
	trace   Trace

	slots     map[SlotKey]*entry
	siteOwner map[string]string              // site -> owning binding
	sites     map[string]map[SlotKey]struct{} // site -> live slots
	seq       int
}

// NewSet creates an empty slot table.
func NewSet(factory Factory, trace Trace) *Set {
	return &Set{
		factory:   factory,
		trace:     trace,
		slots:     make(map[SlotKey]*entry),
		siteOwner: make(map[string]string),
		sites:     make(map[string]map[SlotKey]struct{}),
	}
}

// Resolve returns the child currently materialized at a slot.
func (s *Set) Resolve(k SlotKey) (Child, bool) {
	e, ok := s.slots[k]
	if !ok {
		return nil, false
	}
	return e.child, true
}

// Len returns the number of live children.
func (s *Set) Len() int { return len(s.slots) }

// Reconcile applies one pass's slot requests. recomputed names the bindings
// that re-executed this pass: sites owned by a binding outside this set are
// not touched, so a skipped construct keeps its children. All creations and
// closures happen synchronously within this call.
func (s *Set) Reconcile(reqs []Request, recomputed map[string]bool) error {
	bySite := make(map[string][]Request)
	siteOrder := make([]string, 0)
	for _, r := range reqs {
		if owner, ok := s.siteOwner[r.Slot.Site]; ok && owner != r.Owner {
			return fmt.Errorf("site %q owned by binding %q, requested by %q", r.Slot.Site, owner, r.Owner)
		}
		if _, ok := bySite[r.Slot.Site]; !ok {
			siteOrder = append(siteOrder, r.Slot.Site)
		}
		bySite[r.Slot.Site] = append(bySite[r.Slot.Site], r)
	}

	// Sites previously owned by a recomputed binding that emitted nothing
	// this pass lose their children: the construct re-executed and no
	// longer requires them.
	for site, owner := range s.siteOwner {
		if _, requested := bySite[site]; requested {
			continue
		}
		if recomputed[owner] {
			bySite[site] = nil
			siteOrder = append(siteOrder, site)
		}
	}

	for _, site := range siteOrder {
		if err := s.reconcileSite(site, bySite[site]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Set) reconcileSite(site string, reqs []Request) error {
	if len(reqs) == 0 {
		return s.closeSite(site)
	}

	kind := reqs[0].Slot.Kind
	for _, r := range reqs[1:] {
		if r.Slot.Kind != kind {
			return fmt.Errorf("site %q mixes %s and %s slots", site, kind, r.Slot.Kind)
		}
	}
	s.siteOwner[site] = reqs[0].Owner

	switch kind {
	case KindBranch, KindSingle:
		if len(reqs) != 1 {
			return fmt.Errorf("%s site %q received %d slots in one pass", kind, site, len(reqs))
		}
		return s.reconcileExclusive(site, reqs[0])
	case KindPositional:
		return s.reconcilePositional(site, reqs)
	case KindKeyed:
		return s.reconcileKeyed(site, reqs)
	}
	return fmt.Errorf("site %q: unknown slot kind", site)
}

// reconcileExclusive handles branch and single keyed slots: one occupant per
// site. A changed key creates the replacement before closing the previous
// occupant, so a momentarily-overlapping resource handoff is possible.
func (s *Set) reconcileExclusive(site string, req Request) error {
	var prevKey SlotKey
	var prev *entry
	for k := range s.sites[site] {
		prevKey = k
		prev = s.slots[k]
	}

	if prev != nil && prevKey == req.Slot {
		return prev.child.Update(req.Args...)
	}

	if err := s.create(req); err != nil {
		return err
	}
	if prev != nil {
		return s.close(prevKey)
	}
	return nil
}

func (s *Set) reconcilePositional(site string, reqs []Request) error {
	prev := s.siteSlotsByIndex(site)
	n := len(reqs)

	// Position identity anchors children: existing positions re-execute
	// with new arguments, new trailing positions are created first, then
	// stale trailing positions are closed, highest index first.
	for i, req := range reqs {
		if req.Slot.Index != i {
			return fmt.Errorf("positional site %q: request %d has index %d", site, i, req.Slot.Index)
		}
		if i < len(prev) {
			if err := s.slots[prev[i]].child.Update(req.Args...); err != nil {
				return err
			}
			continue
		}
		if err := s.create(req); err != nil {
			return err
		}
	}
	for i := len(prev) - 1; i >= n; i-- {
		if err := s.close(prev[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Set) reconcileKeyed(site string, reqs []Request) error {
	retained := make(map[SlotKey]struct{}, len(reqs))

	// Source iteration order: retained keys updated and new keys created
	// as they appear; vanished keys closed afterwards.
	for _, req := range reqs {
		if _, dup := retained[req.Slot]; dup {
			return fmt.Errorf("keyed site %q: duplicate key %v in one pass", site, req.Slot.Key)
		}
		retained[req.Slot] = struct{}{}
		if e, ok := s.slots[req.Slot]; ok {
			if err := e.child.Update(req.Args...); err != nil {
				return err
			}
			continue
		}
		if err := s.create(req); err != nil {
			return err
		}
	}

	var stale []SlotKey
	for k := range s.sites[site] {
		if _, keep := retained[k]; !keep {
			stale = append(stale, k)
		}
	}
	// Reverse creation order, matching close semantics elsewhere.
	sort.Slice(stale, func(i, j int) bool {
		return s.slots[stale[i]].seq > s.slots[stale[j]].seq
	})
	for _, k := range stale {
		if err := s.close(k); err != nil {
			return err
		}
	}
	return nil
}

func (s *Set) siteSlotsByIndex(site string) []SlotKey {
	slots := make([]SlotKey, 0, len(s.sites[site]))
	for k := range s.sites[site] {
		slots = append(slots, k)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Index < slots[j].Index })
	return slots
}

func (s *Set) create(req Request) error {
	child, err := s.factory(req)
	if err != nil {
		return err
	}
	s.seq++
	s.slots[req.Slot] = &entry{child: child, def: req.Def.Name, seq: s.seq}
	if s.sites[req.Slot.Site] == nil {
		s.sites[req.Slot.Site] = make(map[SlotKey]struct{})
	}
	s.sites[req.Slot.Site][req.Slot] = struct{}{}
	if s.trace != nil {
		s.trace.OnChildCreate(req.Def.Name)
	}
	return nil
}

func (s *Set) close(k SlotKey) error {
	e, ok := s.slots[k]
	if !ok {
		return nil
	}
	delete(s.slots, k)
	delete(s.sites[k.Site], k)
	if len(s.sites[k.Site]) == 0 {
		delete(s.sites, k.Site)
		delete(s.siteOwner, k.Site)
	}
	if s.trace != nil {
		s.trace.OnChildClose(e.def)
	}
	return e.child.Close(false)
}

func (s *Set) closeSite(site string) error {
	slots := make([]SlotKey, 0, len(s.sites[site]))
	for k := range s.sites[site] {
		slots = append(slots, k)
	}
	sort.Slice(slots, func(i, j int) bool {
		return s.slots[slots[i]].seq > s.slots[slots[j]].seq
	})
	for _, k := range slots {
		if err := s.close(k); err != nil {
			return err
		}
	}
	delete(s.siteOwner, site)
	return nil
}

// CloseAll closes every child in reverse creation order, most recently
// created first. Used when the parent transitions to Closing.
func (s *Set) CloseAll(ignoreFinally bool) error {
	entries := make([]SlotKey, 0, len(s.slots))
	for k := range s.slots {
		entries = append(entries, k)
	}
	sort.Slice(entries, func(i, j int) bool {
		return s.slots[entries[i]].seq > s.slots[entries[j]].seq
	})

	var firstErr error
	for _, k := range entries {
		e := s.slots[k]
		delete(s.slots, k)
		if s.trace != nil {
			s.trace.OnChildClose(e.def)
		}
		if err := e.child.Close(ignoreFinally); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.sites = make(map[string]map[SlotKey]struct{})
	s.siteOwner = make(map[string]string)
	return firstErr
}
