package main

import (
	"context"
	"fmt"

	"github.com/arborlabs/arbor/pkg/adapters/memory"
	"github.com/arborlabs/arbor/pkg/domain"
	"github.com/arborlabs/arbor/pkg/dsl"
)

// builtinSource returns the demo definitions shipped with the CLI. Real
// deployments embed arbor as a library and register their own.
func builtinSource() *memory.Source {
	counter := dsl.Define("counter").
		State("count", 0).
		Bind("double", func(s domain.Scope) (any, error) {
			return s.Get("count").(int) * 2, nil
		}).And().
		On("bump", func(ctx context.Context, s domain.Scope, args ...any) (any, error) {
			n := s.Get("count").(int)
			return n + 1, s.Set("count", n+1)
		}).And().
		On("reset", func(ctx context.Context, s domain.Scope, args ...any) (any, error) {
			return 0, s.Set("count", 0)
		}).And().
		Render(func(s domain.Scope) (any, error) {
			return map[string]any{
				"count":  s.Get("count"),
				"double": s.Get("double"),
			}, nil
		}).
		MustBuild()

	greeter := dsl.Define("greeter").
		Bind("greeting", func(s domain.Scope) (any, error) {
			if s.NumArgs() == 0 {
				return "hello, world", nil
			}
			return fmt.Sprintf("hello, %v", s.Arg(0)), nil
		}).And().
		Render(func(s domain.Scope) (any, error) {
			return s.Get("greeting"), nil
		}).
		MustBuild()

	badge := dsl.Define("badge").
		Render(func(s domain.Scope) (any, error) {
			return fmt.Sprintf("[%v]", s.Arg(0)), nil
		}).
		MustBuild()

	roster := dsl.Define("roster").
		Render(func(s domain.Scope) (any, error) {
			out := make([]any, 0, s.NumArgs())
			for i := 0; i < s.NumArgs(); i++ {
				name := s.Arg(i)
				ref := s.UseKeyed("members", name, badge, name)
				out = append(out, ref)
			}
			return out, nil
		}).
		MustBuild()

	return memory.NewSource(counter, greeter, badge, roster)
}
