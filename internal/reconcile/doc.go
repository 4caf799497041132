/*
Package reconcile manages the child instances composed by one actor instance.

Each compose construct in a definition owns one or more slots, identified by
an explicit key (declaration site plus arm, index, or iteration key) rather
than by structural source position. After every update cycle the reconciler
diffs the slot requests emitted by the pass against the previous pass's
slot table and creates, retains, or closes exactly the children whose
position or key changed. Slots owned by bindings that were skipped this pass
are left untouched: a construct that did not re-execute keeps its children.
*/
package reconcile
