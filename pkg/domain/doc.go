/*
Package domain contains the core domain models for the Arbor runtime.

It defines the fundamental entities of the reactive actor model: actor
definitions, binding declarations, trap declarations, the identity-preserving
equality rule used for change detection, and the error taxonomy of the public
operation surface. This package is kept pure and free of external dependencies
like I/O or persistence, following Hexagonal Architecture principles.

# Key Entities

  - ActorDefinition: Immutable template for one kind of actor instance
    (ordered bindings, trap handlers, render expression, finally block).
  - BindingDecl: A named, recomputed value inside an instance, tracked for
    dependency changes.
  - TrapDecl: A named external entry point an instance's body observes.
  - Scope: The execution context handed to binding and trap code; reads
    through it are recorded as dependencies.
  - Identical: The equality rule deciding whether a value "changed".
*/
package domain
