/*
Package dsl provides a fluent builder for actor definitions.

Arbor has no surface syntax; definitions are constructed programmatically,
which keeps them type-checked and IDE-completable. A definition declares
state and computed bindings, trap observers, a render expression, and an
optional finally block:

	counter := dsl.Define("counter").
		State("count", 0).
		On("increment", func(_ context.Context, s domain.Scope, _ ...any) (any, error) {
			n, _ := s.Get("count").(int)
			return nil, s.Set("count", n+1)
		}).And().
		Render(func(s domain.Scope) (any, error) {
			return s.Get("count"), nil
		}).
		MustBuild()

The built definition is an immutable template; pass it to the runtime to
spawn instances.
*/
package dsl
