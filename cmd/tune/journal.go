package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// scorer is the part of FitnessEvaluator the journal drives.
type scorer interface {
	Evaluate(raw []float64) float64
	LastQuality() float64
}

// journal is the objective handed to CMA-ES. Each call scores the
// denormalized vector, appends a row to the CSV log and prints progress.
// It remembers the best clamped vector seen, which is not always the
// optimizer's final point.
type journal struct {
	params *ParamVector
	scorer scorer
	rows   *csv.Writer
	status io.Writer
	budget int

	evals   int
	best    float64
	bestRaw []float64
	started time.Time
}

func newJournal(params *ParamVector, s scorer, rows, status io.Writer, budget int) *journal {
	return &journal{
		params: params,
		scorer: s,
		rows:   csv.NewWriter(rows),
		status: status,
		budget: budget,
		best:   1e9,
	}
}

// header writes the column row: eval, fitness, then one column per gain.
func (j *journal) header() error {
	cols := make([]string, 0, 2+j.params.Dim())
	cols = append(cols, "eval", "fitness")
	for _, spec := range j.params.Specs {
		cols = append(cols, spec.Name)
	}
	return j.write(cols)
}

func (j *journal) write(rec []string) error {
	if err := j.rows.Write(rec); err != nil {
		return err
	}
	j.rows.Flush()
	return j.rows.Error()
}

// Objective scores one normalized vector. It has the optimize.Problem.Func shape.
func (j *journal) Objective(x []float64) float64 {
	if j.started.IsZero() {
		j.started = time.Now()
	}
	fitness := j.scorer.Evaluate(j.params.Denormalize(x))
	j.evals++

	// The evaluator clamps on apply, so the clamped values are what ran
	ran := j.params.Clamp(j.params.Denormalize(x))
	if fitness < j.best {
		j.best = fitness
		j.bestRaw = append(j.bestRaw[:0], ran...)
	}

	rec := make([]string, 0, 2+len(ran))
	rec = append(rec, strconv.Itoa(j.evals), strconv.FormatFloat(fitness, 'f', 6, 64))
	for _, v := range ran {
		rec = append(rec, strconv.FormatFloat(v, 'f', 6, 64))
	}
	if err := j.write(rec); err != nil {
		fmt.Fprintf(j.status, "tune log: %v\n", err)
	}

	elapsed := time.Since(j.started)
	left := time.Duration(0)
	if j.budget > j.evals {
		left = elapsed / time.Duration(j.evals) * time.Duration(j.budget-j.evals)
	}
	fmt.Fprintf(j.status, "[%d/%d] quality %.3f, best %.3f (%s spent, ~%s to go)\n",
		j.evals, j.budget, j.scorer.LastQuality(), -j.best, clock(elapsed), clock(left))
	return fitness
}

// Best returns the best clamped vector and its fitness; ok is false before
// any evaluation.
func (j *journal) Best() (raw []float64, fitness float64, ok bool) {
	if j.bestRaw == nil {
		return nil, 0, false
	}
	return append([]float64(nil), j.bestRaw...), j.best, true
}

// Elapsed is the wall time since the first evaluation.
func (j *journal) Elapsed() time.Duration {
	if j.started.IsZero() {
		return 0
	}
	return time.Since(j.started)
}

// clock renders d as 4m05s, or 1h04m05s past the hour.
func clock(d time.Duration) string {
	secs := int(d.Round(time.Second) / time.Second)
	h, m, s := secs/3600, secs/60%60, secs%60
	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}
