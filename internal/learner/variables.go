// Package learner implements the genetic-algorithm profiler (C8): fitting
// load-profile coefficients from the execution log a job leaves behind.
package learner

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/saad749/rheem/internal/config"
	"github.com/saad749/rheem/internal/costexpr"
	"github.com/saad749/rheem/internal/learner/execlog"
	"github.com/saad749/rheem/internal/rheemerrors"
)

var variableRef = regexp.MustCompile(`\$\{(\w+)\}`)

// VariableSpace is the gene space C8 searches over: one parsed load-profile
// expression template per operator class (e.g. "${a}*in0 + ${b}"), plus one
// overhead gene per platform a training record can be involved in.
type VariableSpace struct {
	Templates map[string]costexpr.Expr
	varsOf    map[string][]string
	Platforms []string
}

// NewVariableSpace parses templates (operator class -> expression source)
// and records the named variables each references, so the genetic search
// can restrict crossover/mutation to the genes a given training subset
// actually exercises.
func NewVariableSpace(templates map[string]string, platforms []string) (*VariableSpace, error) {
	vs := &VariableSpace{
		Templates: make(map[string]costexpr.Expr, len(templates)),
		varsOf:    make(map[string][]string, len(templates)),
		Platforms: platforms,
	}
	for class, src := range templates {
		e, err := costexpr.Parse(src)
		if err != nil {
			return nil, rheemerrors.Mark(rheemerrors.ConfigurationError, err)
		}
		vs.Templates[class] = e
		vs.varsOf[class] = variableNames(src)
	}
	return vs, nil
}

func variableNames(src string) []string {
	matches := variableRef.FindAllStringSubmatch(src, -1)
	seen := make(map[string]bool, len(matches))
	var names []string
	for _, m := range matches {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	sort.Strings(names)
	return names
}

// OverheadGene returns the gene name for a platform's fixed per-stage
// overhead, the "one overhead variable per platform" of the variable
// space.
func OverheadGene(platform string) string { return "overhead." + platform }

// ActiveGenes returns every gene name referenced by at least one record in
// training: the operator-class template variables for classes present, and
// the overhead genes for platforms present. Mutation leaves genes outside
// this set untouched, and crossover does not carry them into the child, so
// a tribe trained on a subset of operator classes never evolves
// coefficients it has no evidence for.
func ActiveGenes(vs *VariableSpace, training []execlog.PartialExecution) map[string]bool {
	active := make(map[string]bool)
	for _, rec := range training {
		for _, op := range rec.Operators {
			for _, v := range vs.varsOf[op.OperatorClass] {
				active[v] = true
			}
		}
		for _, p := range rec.InvolvedPlatforms {
			active[OverheadGene(p)] = true
		}
	}
	return active
}

// ConfigKey returns the rheem.<platform>.<op>.load key a fitted template
// for operatorClass on platform should be emitted under.
func ConfigKey(platform, operatorClass string) string { return config.LoadKey(platform, operatorClass) }

// Predict sums ind's fitted template over every operator in rec plus one
// overhead gene per involved platform, the estimator C8 is fitting against
// measured PartialExecution.DurationMs.
func (vs *VariableSpace) Predict(ind Individual, rec execlog.PartialExecution) float64 {
	var total float64
	for _, op := range rec.Operators {
		expr, ok := vs.Templates[op.OperatorClass]
		if !ok {
			continue
		}
		env := costexpr.Env{
			Inputs:    floatSlice(op.InputCards),
			Outputs:   floatSlice(op.OutputCards),
			Variables: ind.Genes,
		}
		if v, err := expr.Eval(env); err == nil {
			total += v
		}
	}
	for _, p := range rec.InvolvedPlatforms {
		total += ind.Genes[OverheadGene(p)]
	}
	return total
}

func floatSlice(cards []uint64) []float64 {
	out := make([]float64, len(cards))
	for i, c := range cards {
		out[i] = float64(c)
	}
	return out
}

// groupSignature buckets a record by the sorted set of operator classes it
// touches plus a log-duration bucket index, the "group by operator-class
// signature + log-bucket duration bin" grouping step.
func groupSignature(rec execlog.PartialExecution, bucket int) string {
	classes := make([]string, 0, len(rec.Operators))
	seen := make(map[string]bool, len(rec.Operators))
	for _, op := range rec.Operators {
		if !seen[op.OperatorClass] {
			seen[op.OperatorClass] = true
			classes = append(classes, op.OperatorClass)
		}
	}
	sort.Strings(classes)
	return strings.Join(classes, "+") + "#" + strconv.Itoa(bucket)
}
