// Package stats adjusts p-values for multiple hypothesis testing.
package stats

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	ErrNoPValues     = errors.New("no p-values to adjust")
	ErrUnknownMethod = errors.New("unknown correction method")
)

// Item2PValue ties a tested item to its raw and adjusted p-value.
type Item2PValue[T any] struct {
	Item     T       `json:"item"`
	RawP     float64 `json:"raw_p"`
	Adjusted float64 `json:"adjusted_p"`
}

func NewItem2PValue[T any](item T, raw float64) Item2PValue[T] {
	return Item2PValue[T]{Item: item, RawP: raw, Adjusted: raw}
}

// CompareRaw orders by raw p-value ascending.
func CompareRaw[T any](a, b Item2PValue[T]) int {
	return cmp.Compare(a.RawP, b.RawP)
}

type Method string

const (
	Bonferroni         Method = "bonferroni"
	BenjaminiHochberg  Method = "bh"
	BenjaminiYekutieli Method = "by"
	None               Method = "none"
)

// ParseMethod accepts the short and the long method names.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bonferroni":
		return Bonferroni, nil
	case "bh", "benjamini-hochberg", "fdr":
		return BenjaminiHochberg, nil
	case "by", "benjamini-yekutieli":
		return BenjaminiYekutieli, nil
	case "none", "":
		return None, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMethod, s)
}

// Adjust sets Adjusted on every item with the given method. Items keep
// their position in the slice.
func Adjust[T any](method Method, items []Item2PValue[T]) error {
	switch method {
	case Bonferroni:
		return AdjustBonferroni(items)
	case BenjaminiHochberg:
		return AdjustBenjaminiHochberg(items)
	case BenjaminiYekutieli:
		return AdjustBenjaminiYekutieli(items)
	case None:
		if len(items) == 0 {
			return ErrNoPValues
		}
		for i := range items {
			items[i].Adjusted = items[i].RawP
		}
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownMethod, method)
}

// AdjustBonferroni sets adjusted = min(1, raw * n).
func AdjustBonferroni[T any](items []Item2PValue[T]) error {
	if len(items) == 0 {
		return ErrNoPValues
	}
	n := float64(len(items))
	for i := range items {
		items[i].Adjusted = min(1, items[i].RawP*n)
	}
	return nil
}

// AdjustBenjaminiHochberg controls the false discovery rate under
// independence: ranked ascending, adjusted_i = min_{j>=i} raw_j * n / j.
func AdjustBenjaminiHochberg[T any](items []Item2PValue[T]) error {
	return stepUp(items, 1)
}

// AdjustBenjaminiYekutieli is Benjamini-Hochberg scaled by the harmonic
// number c(n), valid under arbitrary dependence.
func AdjustBenjaminiYekutieli[T any](items []Item2PValue[T]) error {
	return stepUp(items, harmonic(len(items)))
}

func harmonic(n int) float64 {
	c := 0.0
	for k := 1; k <= n; k++ {
		c += 1 / float64(k)
	}
	return c
}

func stepUp[T any](items []Item2PValue[T], factor float64) error {
	if len(items) == 0 {
		return ErrNoPValues
	}
	n := len(items)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(items[a].RawP, items[b].RawP)
	})

	running := 1.0
	for rank := n; rank >= 1; rank-- {
		idx := order[rank-1]
		v := items[idx].RawP * float64(n) * factor / float64(rank)
		running = min(running, v)
		items[idx].Adjusted = running
	}
	return nil
}
