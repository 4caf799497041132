package dsl

import (
	"fmt"

	"github.com/arborlabs/arbor/pkg/domain"
)

// Builder manages construction of one actor definition.
type Builder struct {
	def domain.ActorDefinition
}

// Define starts a new definition with the given name.
func Define(name string) *Builder {
	return &Builder{def: domain.ActorDefinition{Name: name}}
}

// State declares a state binding seeded with an initial value. State
// bindings change only through Scope.Set from trap handlers.
func (b *Builder) State(name string, initial any) *Builder {
	b.def.Bindings = append(b.def.Bindings, domain.BindingDecl{Name: name, Initial: initial})
	return b
}

// Bind declares a computed binding and returns its builder for refinement.
func (b *Builder) Bind(name string, fn domain.ComputeFunc) *BindingBuilder {
	b.def.Bindings = append(b.def.Bindings, domain.BindingDecl{Name: name, Compute: fn})
	return &BindingBuilder{builder: b, index: len(b.def.Bindings) - 1}
}

// On registers a trap observer. Multiple observers of one name are invoked
// in registration order.
func (b *Builder) On(trap string, fn domain.TrapFunc) *TrapBuilder {
	b.def.Traps = append(b.def.Traps, domain.TrapDecl{Name: trap, Handler: fn})
	return &TrapBuilder{builder: b, index: len(b.def.Traps) - 1}
}

// Render sets the instance's return expression. Required.
func (b *Builder) Render(fn domain.ComputeFunc) *Builder {
	b.def.Render = fn
	return b
}

// Finally sets the close block, run after all children have closed.
func (b *Builder) Finally(fn domain.FinallyFunc) *Builder {
	b.def.Finally = fn
	return b
}

// Deferred marks the whole instance as deferred-executing.
func (b *Builder) Deferred() *Builder {
	b.def.Deferred = true
	return b
}

// Build validates the definition and returns it. The returned definition is
// shared and must not be mutated.
func (b *Builder) Build() (*domain.ActorDefinition, error) {
	if err := Validate(&b.def); err != nil {
		return nil, fmt.Errorf("definition %q: %w", b.def.Name, err)
	}
	return &b.def, nil
}

// MustBuild is Build for static definitions; it panics on a validation
// error.
func (b *Builder) MustBuild() *domain.ActorDefinition {
	def, err := b.Build()
	if err != nil {
		panic(err)
	}
	return def
}

// BindingBuilder refines one computed binding.
type BindingBuilder struct {
	builder *Builder
	index   int
}

func (n *BindingBuilder) decl() *domain.BindingDecl {
	return &n.builder.def.Bindings[n.index]
}

// Deferred marks the binding as deferred-executing: its compute returns a
// future resolved before any ordinary binding of the same cycle runs.
func (n *BindingBuilder) Deferred() *BindingBuilder {
	n.decl().Deferred = true
	return n
}

// Inputs replaces the binding's inferred reads with an explicit list.
func (n *BindingBuilder) Inputs(names ...string) *BindingBuilder {
	n.decl().Inputs = append([]string(nil), names...)
	return n
}

// Ignore suppresses specific names from the binding's dependencies even
// though the expression reads them.
func (n *BindingBuilder) Ignore(names ...string) *BindingBuilder {
	n.decl().Ignore = append(n.decl().Ignore, names...)
	return n
}

// And returns to the definition builder for further declarations.
func (n *BindingBuilder) And() *Builder {
	return n.builder
}

// TrapBuilder refines one trap observer.
type TrapBuilder struct {
	builder *Builder
	index   int
}

func (t *TrapBuilder) decl() *domain.TrapDecl {
	return &t.builder.def.Traps[t.index]
}

// Deferred marks the observer as deferred-executing.
func (t *TrapBuilder) Deferred() *TrapBuilder {
	t.decl().Deferred = true
	return t
}

// SingleFlight marks an effect-style observer: a newer invocation cancels
// the context of the one still in flight.
func (t *TrapBuilder) SingleFlight() *TrapBuilder {
	t.decl().SingleFlight = true
	return t
}

// And returns to the definition builder for further declarations.
func (t *TrapBuilder) And() *Builder {
	return t.builder
}
