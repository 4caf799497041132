package arbor_test

import (
	"context"
	"fmt"
	"log"

	"github.com/arborlabs/arbor"
	"github.com/arborlabs/arbor/pkg/domain"
	"github.com/arborlabs/arbor/pkg/dsl"
)

// ExampleNew demonstrates the smallest useful runtime: one definition with a
// piece of state, a trap that mutates it, and a render expression.
func ExampleNew() {
	// 1. Declare the definition with the fluent builder.
	counter := dsl.Define("counter").
		State("count", 0).
		On("bump", func(ctx context.Context, s domain.Scope, args ...any) (any, error) {
			n := s.Get("count").(int)
			return n + 1, s.Set("count", n+1)
		}).
		And().
		Render(func(s domain.Scope) (any, error) {
			return s.Get("count"), nil
		}).
		MustBuild()

	// 2. Spawn an instance. The initial render runs before Spawn returns.
	rt := arbor.New()
	defer rt.Close()

	ctx := context.Background()
	h, err := rt.Spawn(ctx, counter)
	if err != nil {
		log.Fatal(err)
	}

	// 3. Fire the trap twice; Send returns once the cycle has settled.
	for i := 0; i < 2; i++ {
		if _, err := h.Send(ctx, "bump"); err != nil {
			log.Fatal(err)
		}
	}

	out, err := h.Render()
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("count: %v\n", out)
	// Output:
	// count: 2
}

// ExampleNew_composition shows a parent definition mounting keyed children
// and resolving their rendered values through child references.
func ExampleNew_composition() {
	item := dsl.Define("item").
		Render(func(s domain.Scope) (any, error) {
			return fmt.Sprintf("item %v", s.Arg(0)), nil
		}).
		MustBuild()

	list := dsl.Define("list").
		Render(func(s domain.Scope) (any, error) {
			out := make([]any, 0, s.NumArgs())
			for i := 0; i < s.NumArgs(); i++ {
				key := s.Arg(i).(string)
				out = append(out, s.UseKeyed("items", key, item, key))
			}
			return out, nil
		}).
		MustBuild()

	rt := arbor.New()
	defer rt.Close()

	h, err := rt.Spawn(context.Background(), list, "a", "b")
	if err != nil {
		log.Fatal(err)
	}

	out, err := h.Render()
	if err != nil {
		log.Fatal(err)
	}
	for _, ref := range out.([]any) {
		v, err := ref.(domain.ChildRef).Value()
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(v)
	}
	// Output:
	// item a
	// item b
}
