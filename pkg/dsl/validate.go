package dsl

import (
	"fmt"
	"strings"

	"github.com/arborlabs/arbor/pkg/domain"
)

// Validate checks a definition for structural problems: missing render,
// duplicate binding names, input/ignore lists naming unknown bindings,
// deferred state bindings, and observerless traps. All problems are
// collected and reported together.
func Validate(def *domain.ActorDefinition) error {
	var problems []string

	if def.Render == nil {
		problems = append(problems, "no render expression")
	}

	names := make(map[string]bool, len(def.Bindings))
	for _, decl := range def.Bindings {
		if decl.Name == "" {
			problems = append(problems, "binding with empty name")
			continue
		}
		if names[decl.Name] {
			problems = append(problems, fmt.Sprintf("binding %q declared twice", decl.Name))
		}
		names[decl.Name] = true
		if decl.Deferred && !decl.Computed() {
			problems = append(problems, fmt.Sprintf("state binding %q cannot be deferred", decl.Name))
		}
		if decl.Inputs != nil && !decl.Computed() {
			problems = append(problems, fmt.Sprintf("state binding %q cannot declare inputs", decl.Name))
		}
	}

	// Input and ignore lists may only reference sibling bindings; reads of
	// an enclosing or child scope are never tracked.
	for _, decl := range def.Bindings {
		for _, in := range decl.Inputs {
			if !names[in] {
				problems = append(problems, fmt.Sprintf("binding %q lists unknown input %q", decl.Name, in))
			}
		}
		for _, ig := range decl.Ignore {
			if !names[ig] {
				problems = append(problems, fmt.Sprintf("binding %q ignores unknown name %q", decl.Name, ig))
			}
		}
	}

	for _, trap := range def.Traps {
		if trap.Name == "" {
			problems = append(problems, "trap with empty name")
		}
		if trap.Handler == nil {
			problems = append(problems, fmt.Sprintf("trap %q has no handler", trap.Name))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("found %d problems:\n- %s", len(problems), strings.Join(problems, "\n- "))
	}
	return nil
}
