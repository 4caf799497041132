/*
Package graph implements the incremental dependency graph engine.

Bindings live in an arena indexed by integer handle; dependency edges are
recorded read-sets from the most recent evaluation, so conditional reads are
tracked naturally and cycles are ordinary graph edges with no ownership
implication. Each pass recomputes the minimal set of dirty bindings, in
topological order of strongly connected components, exactly once each.
Members of a cycle read the last-known value of peers that have not yet
recomputed this pass; cycles converge by construction and are never rejected.
*/
package graph
