package graph

import (
	"fmt"
	"iter"
)

// Adjacency returns the neighbours of the dense vertex v.
type Adjacency func(v int32) []int32

// BreadthFirst returns a lazy breadth-first walk from start over next.
// Every vertex is yielded at most once. Breaking out of the range loop stops
// the walk; ranging again restarts it from scratch.
func BreadthFirst(n int, start int32, next Adjacency, includeStart bool) iter.Seq[int32] {
	return func(yield func(int32) bool) {
		seen := make([]bool, n)
		seen[start] = true
		if includeStart && !yield(start) {
			return
		}
		queue := []int32{start}
		for len(queue) > 0 {
			v := queue[0]
			queue = queue[1:]
			for _, w := range next(v) {
				if seen[w] {
					continue
				}
				seen[w] = true
				if !yield(w) {
					return
				}
				queue = append(queue, w)
			}
		}
	}
}

type cycleError struct {
	vertex int32
}

func (e *cycleError) Error() string {
	return fmt.Sprintf("cycle through vertex %d", e.vertex)
}

func (e *cycleError) Unwrap() error { return ErrGraphNotDAG }

const (
	unmarked uint8 = iota
	temporary
	permanent
)

// TopologicalSort performs a depth-first topological sort of the vertices
// 0..n-1 following next. A vertex is emitted only after every vertex reachable
// from it, so when next yields parents the result lists ancestors first.
// Meeting a temporarily marked vertex means a cycle and ErrGraphNotDAG is
// returned.
func TopologicalSort(n int, next Adjacency) ([]int32, error) {
	marks := make([]uint8, n)
	order := make([]int32, 0, n)

	type frame struct {
		v   int32
		pos int
	}
	stack := make([]frame, 0, 64)

	for s := range int32(n) {
		if marks[s] != unmarked {
			continue
		}
		marks[s] = temporary
		stack = append(stack, frame{v: s})
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			adj := next(top.v)
			if top.pos < len(adj) {
				w := adj[top.pos]
				top.pos++
				switch marks[w] {
				case temporary:
					return nil, &cycleError{vertex: w}
				case unmarked:
					marks[w] = temporary
					stack = append(stack, frame{v: w})
				}
				continue
			}
			marks[top.v] = permanent
			order = append(order, top.v)
			stack = stack[:len(stack)-1]
		}
	}
	return order, nil
}
