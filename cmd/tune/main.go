// Package main searches the feedback controller gains with CMA-ES for
// settings that keep type diversity high without tripping the valve.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/emergent/config"
	"github.com/pthm-cable/emergent/species"
)

type options struct {
	config     string
	ticks      int
	seeds      int
	evals      int
	population int
	out        string
}

func main() {
	var o options
	flag.StringVar(&o.config, "config", "", "Base config YAML file (empty = use defaults)")
	flag.IntVar(&o.ticks, "max-ticks", 6000, "Ticks per run; a run also ends on extinction")
	flag.IntVar(&o.seeds, "seeds", 3, "Seeds averaged per evaluation")
	flag.IntVar(&o.evals, "max-evals", 100, "Evaluation budget")
	flag.IntVar(&o.population, "population", 0, "CMA-ES population (0 = 4 + 1.5 per gain)")
	flag.StringVar(&o.out, "output", "", "Directory for tune_log.csv, best_config.yaml and best_archetypes.json")
	flag.Parse()

	if err := run(o); err != nil {
		log.Fatal(err)
	}
}

func run(o options) error {
	if o.out == "" {
		return errors.New("--output is required")
	}
	if err := os.MkdirAll(o.out, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := config.Init(o.config); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	base := config.Cfg()
	params := NewParamVector()

	seeds := make([]int64, o.seeds)
	for i := range seeds {
		seeds[i] = 42 + int64(i)*1000
	}
	fe := NewFitnessEvaluator(params, o.ticks, seeds, base)

	logFile, err := os.Create(filepath.Join(o.out, "tune_log.csv"))
	if err != nil {
		return fmt.Errorf("create tune log: %w", err)
	}
	defer logFile.Close()

	j := newJournal(params, fe, logFile, os.Stdout, o.evals)
	if err := j.header(); err != nil {
		return fmt.Errorf("write tune log: %w", err)
	}

	pop := o.population
	if pop <= 0 {
		pop = 4 + 3*params.Dim()/2
	}
	fmt.Printf("tuning %d gains: population %d, %d evals, %d seeds x %d ticks\n",
		params.Dim(), pop, o.evals, o.seeds, o.ticks)

	result, err := optimize.Minimize(
		optimize.Problem{Func: j.Objective},
		params.Normalize(params.ExtractFromConfig(base)),
		&optimize.Settings{FuncEvaluations: o.evals},
		&optimize.CmaEsChol{InitStepSize: 0.3, Population: pop},
	)
	if err != nil {
		log.Printf("optimizer stopped: %v", err)
	}

	best, fitness, ok := j.Best()
	if !ok {
		if result == nil {
			return errors.New("no evaluation completed")
		}
		best, fitness = params.Clamp(params.Denormalize(result.X)), result.F
	}

	fmt.Printf("\nbest quality %.4f after %d evals in %s\n", -fitness, j.evals, clock(j.Elapsed()))
	for i, spec := range params.Specs {
		fmt.Printf("  %-18s %.6f\n", spec.Name, best[i])
	}
	return saveResults(o.out, base, params, best, fe.BestArchetypes())
}

// saveResults writes the tuned config and, when present, the archetypes
// minted by the best seed.
func saveResults(dir string, base *config.Config, params *ParamVector, best []float64, archetypes []species.Archetype) error {
	cfg := base.Clone()
	params.ApplyToConfig(cfg, best)
	path := filepath.Join(dir, "best_config.yaml")
	if err := cfg.WriteYAML(path); err != nil {
		return fmt.Errorf("write best config: %w", err)
	}
	fmt.Println("config:", path)

	if len(archetypes) == 0 {
		return nil
	}
	data, err := json.MarshalIndent(archetypes, "", "  ")
	if err != nil {
		return fmt.Errorf("encode archetypes: %w", err)
	}
	path = filepath.Join(dir, "best_archetypes.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write archetypes: %w", err)
	}
	fmt.Println("archetypes:", path)
	return nil
}
