// Package sweep evaluates a grid of parameter variations on one image pair.
//
// Every combination is an independent compute + normalize run, so runs are
// spread over a bounded number of goroutines.
package sweep

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"sgbmtuner/internal/models"
	"sgbmtuner/pkg/display"
	"sgbmtuner/pkg/imageio"
	"sgbmtuner/pkg/stereo"
)

// Variation lists the values to try for one parameter
type Variation struct {
	Name   string
	Values []int
}

// Setting is one parameter assignment of a combination
type Setting struct {
	Name  string
	Value int
}

// Outcome is the result of one combination
type Outcome struct {
	// Settings are the assignments applied on top of the base parameters
	Settings []Setting

	// Params is the resulting parameter set
	Params stereo.ParameterSet

	// Map and Stats are set when the run succeeded
	Map   *models.DisplayMap
	Stats display.Stats

	Elapsed time.Duration

	// Err records a combination that could not be computed, for example
	// one where P2 ends up not greater than P1
	Err error
}

// Label names the combination, e.g. "uniquenessRatio-10_P2-480"
func (o Outcome) Label() string {
	parts := make([]string, len(o.Settings))
	for i, s := range o.Settings {
		parts[i] = fmt.Sprintf("%s-%d", s.Name, s.Value)
	}
	return strings.Join(parts, "_")
}

// Runner executes sweeps
type Runner struct {
	// Workers bounds the number of concurrent computations; <= 0 uses all CPUs
	Workers int

	engine *stereo.Engine
}

// NewRunner creates a runner with the given concurrency
func NewRunner(workers int) *Runner {
	return &Runner{Workers: workers, engine: stereo.NewEngine()}
}

// Run computes every combination of vars applied to base. Image problems
// fail the whole sweep before any work starts; parameter problems are
// recorded per combination. Outcomes are returned in combination order.
func (r *Runner) Run(ctx context.Context, left, right *models.Image, base stereo.ParameterSet, vars []Variation) ([]Outcome, error) {
	if err := stereo.CheckImages(left, right); err != nil {
		return nil, err
	}
	base.SetBlockSizeLimit(left.Width, left.Height)

	outcomes, err := Expand(base, vars)
	if err != nil {
		return nil, err
	}

	workers := r.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range outcomes {
		o := &outcomes[i]
		if o.Err != nil {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			field, err := r.engine.Compute(left, right, o.Params)
			if err != nil {
				o.Err = err
				return nil
			}
			o.Map = display.Normalize(field)
			o.Stats = display.Summarize(field)
			o.Elapsed = time.Since(start)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

// Expand builds the cartesian product of vars on top of base. The first
// variation changes slowest. A value rejected by its setter is recorded in
// that outcome's Err; an unknown parameter name fails the expansion.
func Expand(base stereo.ParameterSet, vars []Variation) ([]Outcome, error) {
	for _, v := range vars {
		if _, err := base.Get(v.Name); err != nil {
			return nil, err
		}
		if len(v.Values) == 0 {
			return nil, fmt.Errorf("%w: no values given for %s", stereo.ErrInvalidParameter, v.Name)
		}
	}

	outcomes := []Outcome{{Params: base}}
	for _, v := range vars {
		next := make([]Outcome, 0, len(outcomes)*len(v.Values))
		for _, o := range outcomes {
			for _, value := range v.Values {
				n := Outcome{
					Settings: append(append([]Setting(nil), o.Settings...), Setting{Name: v.Name, Value: value}),
					Params:   o.Params,
					Err:      o.Err,
				}
				if n.Err == nil {
					n.Err = n.Params.Set(v.Name, value)
				}
				next = append(next, n)
			}
		}
		outcomes = next
	}
	return outcomes, nil
}

// ParseVariations reads "name=v1,v2;name2=v3" into variations
func ParseVariations(spec string) ([]Variation, error) {
	var vars []Variation
	for _, part := range strings.Split(spec, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, list, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("invalid sweep term %q, expected name=v1,v2", part)
		}
		v := Variation{Name: strings.TrimSpace(name)}
		for _, s := range strings.Split(list, ",") {
			n, err := strconv.Atoi(strings.TrimSpace(s))
			if err != nil {
				return nil, fmt.Errorf("invalid value %q for %s: %w", s, v.Name, err)
			}
			v.Values = append(v.Values, n)
		}
		vars = append(vars, v)
	}
	return vars, nil
}

// FromMap converts configured value lists into variations ordered by name
func FromMap(values map[string][]int) []Variation {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	vars := make([]Variation, 0, len(names))
	for _, name := range names {
		vars = append(vars, Variation{Name: name, Values: values[name]})
	}
	return vars
}

// Rank orders successful outcomes by valid pixel ratio, best first. Failed
// combinations are dropped.
func Rank(outcomes []Outcome) []Outcome {
	ranked := make([]Outcome, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Err == nil {
			ranked = append(ranked, o)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Stats.ValidRatio() > ranked[j].Stats.ValidRatio()
	})
	return ranked
}

// Save writes the display map of every successful outcome into dir, named
// after its label
func Save(outcomes []Outcome, dir string, rgb bool) error {
	for i, o := range outcomes {
		if o.Err != nil || o.Map == nil {
			continue
		}
		name := o.Label()
		if name == "" {
			name = "base"
		}
		path := filepath.Join(dir, fmt.Sprintf("%03d_%s.png", i+1, name))
		if err := imageio.SaveDisplayMap(path, o.Map, rgb); err != nil {
			return err
		}
	}
	return nil
}
