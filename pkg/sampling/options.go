package sampling

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidOptions = errors.New("invalid sampling options")

// Options controls a sampling run. Object and term count ranges are
// inclusive.
type Options struct {
	NumThreads    int    `yaml:"num_threads" json:"num_threads"`
	MinObjectID   int    `yaml:"min_object_id" json:"min_object_id"`
	MaxObjectID   int    `yaml:"max_object_id" json:"max_object_id"`
	MinNumTerms   int    `yaml:"min_num_terms" json:"min_num_terms"`
	MaxNumTerms   int    `yaml:"max_num_terms" json:"max_num_terms"`
	NumIterations int    `yaml:"num_iterations" json:"num_iterations"`
	Seed          uint64 `yaml:"seed" json:"seed"`

	// IterationsPerTask splits the iterations of one (term count, object)
	// pair into several tasks. 0 keeps them in a single task.
	IterationsPerTask int `yaml:"iterations_per_task" json:"iterations_per_task"`
}

func DefaultOptions() Options {
	return Options{
		NumThreads:    1,
		MinObjectID:   0,
		MaxObjectID:   math.MaxInt,
		MinNumTerms:   1,
		MaxNumTerms:   20,
		NumIterations: 100000,
		Seed:          42,
	}
}

func (o Options) Validate() error {
	switch {
	case o.NumThreads < 0:
		return fmt.Errorf("%w: num_threads must not be negative, got %d", ErrInvalidOptions, o.NumThreads)
	case o.MinNumTerms < 1:
		return fmt.Errorf("%w: min_num_terms must be at least 1, got %d", ErrInvalidOptions, o.MinNumTerms)
	case o.MinNumTerms > o.MaxNumTerms:
		return fmt.Errorf("%w: min_num_terms %d > max_num_terms %d", ErrInvalidOptions, o.MinNumTerms, o.MaxNumTerms)
	case o.MinObjectID > o.MaxObjectID:
		return fmt.Errorf("%w: min_object_id %d > max_object_id %d", ErrInvalidOptions, o.MinObjectID, o.MaxObjectID)
	case o.NumIterations < 1:
		return fmt.Errorf("%w: num_iterations must be at least 1, got %d", ErrInvalidOptions, o.NumIterations)
	case o.IterationsPerTask < 0:
		return fmt.Errorf("%w: iterations_per_task must not be negative, got %d", ErrInvalidOptions, o.IterationsPerTask)
	}
	return nil
}

func (o Options) iterationsPerTask() int {
	if o.IterationsPerTask == 0 || o.IterationsPerTask > o.NumIterations {
		return o.NumIterations
	}
	return o.IterationsPerTask
}
