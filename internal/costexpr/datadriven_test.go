package costexpr_test

import (
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/cockroachdb/datadriven"

	"github.com/saad749/rheem/internal/costexpr"
)

// TestDataDrivenEval walks testdata/eval, parsing and evaluating one
// expression per "eval" directive against the inputs/outputs/variables its
// arguments describe.
func TestDataDrivenEval(t *testing.T) {
	datadriven.RunTest(t, "testdata/eval", func(t *testing.T, d *datadriven.TestData) string {
		switch d.Cmd {
		case "eval":
			env := costexpr.Env{Variables: map[string]float64{}}
			for _, arg := range d.CmdArgs {
				switch arg.Key {
				case "in":
					for _, v := range arg.Vals {
						f, err := strconv.ParseFloat(v, 64)
						if err != nil {
							t.Fatalf("bad in value %q: %v", v, err)
						}
						env.Inputs = append(env.Inputs, f)
					}
				case "out":
					for _, v := range arg.Vals {
						f, err := strconv.ParseFloat(v, 64)
						if err != nil {
							t.Fatalf("bad out value %q: %v", v, err)
						}
						env.Outputs = append(env.Outputs, f)
					}
				case "var":
					for _, v := range arg.Vals {
						parts := strings.SplitN(v, ":", 2)
						if len(parts) != 2 {
							t.Fatalf("bad var entry %q, want name:value", v)
						}
						f, err := strconv.ParseFloat(parts[1], 64)
						if err != nil {
							t.Fatalf("bad var value %q: %v", v, err)
						}
						env.Variables[parts[0]] = f
					}
				default:
					t.Fatalf("unknown arg %q", arg.Key)
				}
			}

			expr, err := costexpr.Parse(strings.TrimSpace(d.Input))
			if err != nil {
				return fmt.Sprintf("error: %v\n", err)
			}
			v, err := expr.Eval(env)
			if err != nil {
				return fmt.Sprintf("error: %v\n", err)
			}
			return fmt.Sprintf("%g\n", v)
		default:
			t.Fatalf("unknown command %q", d.Cmd)
			return ""
		}
	})
}
