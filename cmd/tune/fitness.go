package main

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/emergent/config"
	"github.com/pthm-cable/emergent/sim"
	"github.com/pthm-cable/emergent/species"
	"github.com/pthm-cable/emergent/telemetry"
)

// FitnessEvaluator runs headless simulations and computes fitness.
type FitnessEvaluator struct {
	params      *ParamVector
	maxTicks    int
	seeds       []int64
	baseConfig  *config.Config
	statsWindow float64

	// Best run tracking
	mu             sync.Mutex
	bestFitness    float64
	bestArchetypes []species.Archetype
	lastQuality    float64
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, maxTicks int, seeds []int64, baseCfg *config.Config) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:      params,
		maxTicks:    maxTicks,
		seeds:       seeds,
		baseConfig:  baseCfg,
		statsWindow: 5.0,
		bestFitness: math.Inf(1),
	}
}

// BestArchetypes returns the archetypes minted by the best seed of the best evaluation.
func (fe *FitnessEvaluator) BestArchetypes() []species.Archetype {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.bestArchetypes
}

// LastQuality returns the quality score from the most recent evaluation.
func (fe *FitnessEvaluator) LastQuality() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastQuality
}

// runResult holds the results from a single simulation run.
type runResult struct {
	ticks       int
	windowStats []telemetry.WindowStats
	valveTrips  int
	archetypes  []species.Archetype
}

type seedResult struct {
	fitness    float64
	quality    float64
	archetypes []species.Archetype
}

// Evaluate computes fitness for a parameter vector (lower = better).
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	results := make([]seedResult, len(fe.seeds))
	var wg sync.WaitGroup

	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			r := fe.runSimulation(x, s)
			q := fe.computeQuality(r)
			results[idx] = seedResult{fitness: -q, quality: q, archetypes: r.archetypes}
		}(i, seed)
	}
	wg.Wait()

	var totalFitness, totalQuality float64
	bestSeed := math.Inf(1)
	var bestArchetypes []species.Archetype
	for _, r := range results {
		totalFitness += r.fitness
		totalQuality += r.quality
		if r.fitness < bestSeed {
			bestSeed = r.fitness
			bestArchetypes = r.archetypes
		}
	}

	n := float64(len(fe.seeds))
	avgFitness := totalFitness / n

	fe.mu.Lock()
	if avgFitness < fe.bestFitness {
		fe.bestFitness = avgFitness
		fe.bestArchetypes = bestArchetypes
	}
	fe.lastQuality = totalQuality / n
	fe.mu.Unlock()

	return avgFitness
}

// runSimulation executes one headless run until the population dies out or
// maxTicks is reached.
func (fe *FitnessEvaluator) runSimulation(x []float64, seed int64) *runResult {
	cfg := fe.baseConfig.Clone()
	fe.params.ApplyToConfig(cfg, x)

	result := &runResult{}
	s, err := sim.NewSimulation(cfg, sim.Options{
		Seed:           seed,
		StatsWindowSec: fe.statsWindow,
		StatsCallback: func(stats telemetry.WindowStats) {
			result.windowStats = append(result.windowStats, stats)
		},
	})
	if err != nil {
		return result
	}
	defer s.Close()

	w := s.World()
	for result.ticks < fe.maxTicks {
		s.RunTicks(1)
		result.ticks++
		if w.LiveCount() == 0 {
			break
		}
	}
	result.valveTrips = w.Feedback.State.ValveTrips
	result.archetypes = w.Registry.Entries()
	return result
}

// Quality component weights.
const (
	qualityWeightDiversity = 0.45
	qualityWeightHealth    = 0.35
	qualityWeightSurvival  = 0.20

	// Each valve trip costs this much quality.
	valveTripPenalty = 0.02

	qualityWarmupWindows = 2
)

// computeQuality scores a run in [0, 1]: sustained type diversity and
// health, discounted by variability, early death and valve trips.
func (fe *FitnessEvaluator) computeQuality(r *runResult) float64 {
	survival := 0.0
	if fe.maxTicks > 0 {
		survival = float64(r.ticks) / float64(fe.maxTicks)
	}
	if len(r.windowStats) <= qualityWarmupWindows {
		return clamp01(qualityWeightSurvival*survival - valveTripPenalty*float64(r.valveTrips))
	}
	valid := r.windowStats[qualityWarmupWindows:]

	diversity := make([]float64, len(valid))
	health := make([]float64, len(valid))
	for i, w := range valid {
		diversity[i] = w.Diversity
		health[i] = w.Health
	}
	divMean, divStd := stat.MeanStdDev(diversity, nil)
	if math.IsNaN(divStd) {
		divStd = 0
	}
	healthMean := stat.Mean(health, nil)

	// Penalize diversity that swings between windows
	divScore := divMean * math.Exp(-divStd*divStd)

	quality := qualityWeightDiversity*divScore +
		qualityWeightHealth*healthMean +
		qualityWeightSurvival*survival -
		valveTripPenalty*float64(r.valveTrips)
	return clamp01(quality)
}

// clamp01 clamps x to [0, 1].
func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
