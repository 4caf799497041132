package reconcile

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arborlabs/arbor/pkg/domain"
)

type fakeChild struct {
	id      int
	log     *[]string
	updates int
	closed  bool
}

func (c *fakeChild) Update(args ...any) error {
	c.updates++
	*c.log = append(*c.log, fmt.Sprintf("update %d", c.id))
	return nil
}

func (c *fakeChild) Render() (any, error) { return c.id, nil }

func (c *fakeChild) Close(ignoreFinally bool) error {
	c.closed = true
	*c.log = append(*c.log, fmt.Sprintf("close %d", c.id))
	return nil
}

type harness struct {
	set     *Set
	log     []string
	nextID  int
	created map[any]*fakeChild // by slot key-ish identity for assertions
}

func newHarness() *harness {
	h := &harness{created: make(map[any]*fakeChild)}
	h.set = NewSet(func(req Request) (Child, error) {
		h.nextID++
		c := &fakeChild{id: h.nextID, log: &h.log}
		h.log = append(h.log, fmt.Sprintf("create %d", h.nextID))
		h.created[req.Slot] = c
		return c, nil
	}, nil)
	return h
}

var def = &domain.ActorDefinition{Name: "item"}

func keyedReq(owner, site string, key any, args ...any) Request {
	return Request{Owner: owner, Slot: SlotKey{Site: site, Kind: KindKeyed, Key: key}, Def: def, Args: args}
}

func TestKeyedMinimalChurn(t *testing.T) {
	h := newHarness()
	all := map[string]bool{"body": true}

	pass1 := []Request{
		keyedReq("body", "list", "a"),
		keyedReq("body", "list", "b"),
		keyedReq("body", "list", "c"),
	}
	require.NoError(t, h.set.Reconcile(pass1, all))
	require.Equal(t, 3, h.set.Len())

	idB := h.created[SlotKey{Site: "list", Kind: KindKeyed, Key: "b"}]
	idC := h.created[SlotKey{Site: "list", Kind: KindKeyed, Key: "c"}]

	h.log = nil
	pass2 := []Request{
		keyedReq("body", "list", "b"),
		keyedReq("body", "list", "c"),
		keyedReq("body", "list", "d"),
	}
	require.NoError(t, h.set.Reconcile(pass2, all))

	// Exactly one close (a), exactly one create (d); b and c update in
	// source order with identity preserved.
	assert.Equal(t, []string{"update 2", "update 3", "create 4", "close 1"}, h.log)
	gotB, _ := h.set.Resolve(SlotKey{Site: "list", Kind: KindKeyed, Key: "b"})
	gotC, _ := h.set.Resolve(SlotKey{Site: "list", Kind: KindKeyed, Key: "c"})
	assert.Same(t, Child(idB), gotB)
	assert.Same(t, Child(idC), gotC)
}

func TestPositionalAnchorsByPosition(t *testing.T) {
	h := newHarness()
	all := map[string]bool{"body": true}

	posReq := func(i int, arg any) Request {
		return Request{Owner: "body", Slot: SlotKey{Site: "loop", Kind: KindPositional, Index: i}, Def: def, Args: []any{arg}}
	}

	require.NoError(t, h.set.Reconcile([]Request{posReq(0, "x"), posReq(1, "y")}, all))
	first, _ := h.set.Resolve(SlotKey{Site: "loop", Kind: KindPositional, Index: 0})

	// Same count, shuffled values: no churn, positions update in place.
	h.log = nil
	require.NoError(t, h.set.Reconcile([]Request{posReq(0, "y"), posReq(1, "x")}, all))
	assert.Equal(t, []string{"update 1", "update 2"}, h.log)
	still, _ := h.set.Resolve(SlotKey{Site: "loop", Kind: KindPositional, Index: 0})
	assert.Same(t, first, still)

	// Grow: new tail created. Shrink: stale tail closed, highest first.
	h.log = nil
	require.NoError(t, h.set.Reconcile([]Request{posReq(0, "a"), posReq(1, "b"), posReq(2, "c")}, all))
	assert.Equal(t, []string{"update 1", "update 2", "create 3"}, h.log)

	h.log = nil
	require.NoError(t, h.set.Reconcile([]Request{posReq(0, "a")}, all))
	assert.Equal(t, []string{"update 1", "close 3", "close 2"}, h.log)
}

func TestBranchCreatesBeforeClosing(t *testing.T) {
	h := newHarness()
	all := map[string]bool{"body": true}

	branchReq := func(arm string) Request {
		return Request{Owner: "body", Slot: SlotKey{Site: "cond", Kind: KindBranch, Key: arm}, Def: def}
	}

	require.NoError(t, h.set.Reconcile([]Request{branchReq("then")}, all))
	h.log = nil
	require.NoError(t, h.set.Reconcile([]Request{branchReq("else")}, all))
	// Construction-then-destruction ordering: the handoff may overlap.
	assert.Equal(t, []string{"create 2", "close 1"}, h.log)

	// Same arm again: update, not recreate.
	h.log = nil
	require.NoError(t, h.set.Reconcile([]Request{branchReq("else")}, all))
	assert.Equal(t, []string{"update 2"}, h.log)
}

func TestSingleSlotKeyChange(t *testing.T) {
	h := newHarness()
	all := map[string]bool{"body": true}

	slotReq := func(key any) Request {
		return Request{Owner: "body", Slot: SlotKey{Site: "slot", Kind: KindSingle, Key: key}, Def: def}
	}

	require.NoError(t, h.set.Reconcile([]Request{slotReq(1)}, all))
	h.log = nil
	require.NoError(t, h.set.Reconcile([]Request{slotReq(2)}, all))
	assert.Equal(t, []string{"create 2", "close 1"}, h.log)
}

func TestSkippedOwnerKeepsChildren(t *testing.T) {
	h := newHarness()

	require.NoError(t, h.set.Reconcile([]Request{keyedReq("body", "list", "a")}, map[string]bool{"body": true}))
	require.Equal(t, 1, h.set.Len())

	// Next pass: "body" was skipped, so it emitted no requests. Its
	// children must survive untouched.
	h.log = nil
	require.NoError(t, h.set.Reconcile(nil, map[string]bool{"other": true}))
	assert.Empty(t, h.log)
	assert.Equal(t, 1, h.set.Len())

	// But when "body" re-executes and emits nothing, the children close.
	require.NoError(t, h.set.Reconcile(nil, map[string]bool{"body": true}))
	assert.Equal(t, 0, h.set.Len())
	assert.Equal(t, []string{"close 1"}, h.log)
}

func TestCloseAllReverseCreationOrder(t *testing.T) {
	h := newHarness()
	all := map[string]bool{"body": true}
	require.NoError(t, h.set.Reconcile([]Request{
		keyedReq("body", "list", "a"),
		keyedReq("body", "list", "b"),
		keyedReq("body", "list", "c"),
	}, all))

	h.log = nil
	require.NoError(t, h.set.CloseAll(false))
	assert.Equal(t, []string{"close 3", "close 2", "close 1"}, h.log)
	assert.Equal(t, 0, h.set.Len())
}

func TestSiteOwnershipConflict(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.set.Reconcile([]Request{keyedReq("body", "list", "a")}, map[string]bool{"body": true}))
	err := h.set.Reconcile([]Request{keyedReq("intruder", "list", "a")}, map[string]bool{"intruder": true})
	assert.Error(t, err)
}
