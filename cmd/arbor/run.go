package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/arborlabs/arbor"
	"github.com/arborlabs/arbor/pkg/domain"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <definition> [args...]",
	Short: "Run an instance interactively",
	Long: `Spawns an instance of the named definition and reads trap invocations
from stdin, one per line:

  <trap> [arg ...]   send a trap
  render             print the current output
  exit               close the instance and quit

Subscriber notifications are printed as they arrive.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runInteractive(args[0], args[1:]); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func runInteractive(definition string, rawArgs []string) error {
	def, err := builtinSource().Definition(definition)
	if err != nil {
		return err
	}

	rt := arbor.New()
	defer rt.Close()

	spawnArgs := make([]any, 0, len(rawArgs))
	for _, a := range rawArgs {
		spawnArgs = append(spawnArgs, a)
	}

	ctx := context.Background()
	h, err := rt.Spawn(ctx, def, spawnArgs...)
	if err != nil {
		return err
	}

	cancel := h.Subscribe(domain.Observer{
		OnUpdate: func(v any) {
			fmt.Printf("-> %s\n", renderValue(v))
		},
		OnError: func(err error) {
			fmt.Printf("!! %v\n", err)
		},
	})
	defer cancel()

	out, err := h.Render()
	if err != nil {
		return err
	}
	fmt.Printf("%s = %s\n", h.ID(), renderValue(out))

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "exit", "quit":
			return h.Close(false)
		case "render":
			out, err := h.Render()
			if err != nil {
				fmt.Printf("!! %v\n", err)
				continue
			}
			fmt.Println(renderValue(out))
		default:
			trapArgs := make([]any, 0, len(fields)-1)
			for _, f := range fields[1:] {
				trapArgs = append(trapArgs, f)
			}
			result, err := h.Send(ctx, fields[0], trapArgs...)
			if err != nil {
				fmt.Printf("!! %v\n", err)
				continue
			}
			if fut, ok := result.(*domain.Future); ok {
				result, err = fut.Await(ctx)
				if err != nil {
					fmt.Printf("!! %v\n", err)
					continue
				}
			}
			if result != nil {
				fmt.Println(renderValue(result))
			}
		}
	}
	return scanner.Err()
}

// renderValue formats output for the terminal, resolving child refs and
// falling back from JSON for odd types.
func renderValue(v any) string {
	if ref, ok := v.(domain.ChildRef); ok {
		inner, err := ref.Value()
		if err != nil {
			return fmt.Sprintf("<child error: %v>", err)
		}
		return renderValue(inner)
	}
	if refs, ok := v.([]any); ok {
		parts := make([]string, 0, len(refs))
		for _, r := range refs {
			parts = append(parts, renderValue(r))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(payload)
}

func init() {
	rootCmd.AddCommand(runCmd)
}
