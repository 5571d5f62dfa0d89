package service

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"sync/atomic"

	"go.uber.org/zap"

	"sekonomy/internal/core/domain"
	"sekonomy/internal/port"
)

// weightTable is an immutable precomputed table for rarity-weighted random
// selection. Weights follow weight(rarity) = base^rarity, normalized to sum
// to 1, stored as a strictly increasing cumulative sequence so a draw is a
// single binary search.
type weightTable struct {
	items    []string
	rarities []int
	cum      []float64
	total    float64
}

func newWeightTable(entries []domain.CatalogEntry, base float64) *weightTable {
	t := &weightTable{
		items:    make([]string, 0, len(entries)),
		rarities: make([]int, 0, len(entries)),
		cum:      make([]float64, 0, len(entries)),
	}

	var raw float64
	weights := make([]float64, len(entries))
	for i, e := range entries {
		weights[i] = math.Pow(base, float64(e.Rarity))
		raw += weights[i]
	}

	for i, e := range entries {
		t.total += weights[i] / raw
		t.items = append(t.items, e.ItemID)
		t.rarities = append(t.rarities, e.Rarity)
		t.cum = append(t.cum, t.total)
	}
	return t
}

// draw maps u in [0,1) to the item whose cumulative weight is the smallest
// one >= u*total.
func (t *weightTable) draw(u float64) (string, int) {
	target := u * t.total
	idx := sort.SearchFloat64s(t.cum, target)
	if idx >= len(t.items) {
		idx = len(t.items) - 1
	}
	return t.items[idx], t.rarities[idx]
}

func (t *weightTable) size() int { return len(t.items) }

// weights returns the normalized per-item weights, in item order.
func (t *weightTable) weights() []float64 {
	out := make([]float64, len(t.cum))
	prev := 0.0
	for i, c := range t.cum {
		out[i] = c - prev
		prev = c
	}
	return out
}

// snapshot is one immutable generation of sampler state. byCutoff holds the
// reduced tables for the registered rarity cutoffs used by the drop engine.
type snapshot struct {
	version  uint64
	full     *weightTable
	byCutoff map[int]*weightTable
}

// Sampler performs rarity-weighted random item selection over the catalog.
// Refresh swaps in a new snapshot atomically, so in-flight pulls keep
// reading the generation they started with.
type Sampler struct {
	catalog port.CatalogRepository
	base    float64
	cutoffs []int
	logger  *zap.Logger

	snap    atomic.Pointer[snapshot]
	version atomic.Uint64

	// uniform draws U in [0,1); replaceable in tests
	uniform func() float64
}

// NewSampler builds an uninitialized sampler; call Refresh before Pull.
// cutoffs lists the rarity ceilings whose reduced tables should be
// precomputed on every refresh.
func NewSampler(catalog port.CatalogRepository, base float64, cutoffs []int, logger *zap.Logger) *Sampler {
	return &Sampler{
		catalog: catalog,
		base:    base,
		cutoffs: cutoffs,
		logger:  logger,
		uniform: rand.Float64,
	}
}

// Refresh rebuilds the weight tables from the catalog and swaps them in
// without blocking concurrent pulls. An empty catalog is an error and
// leaves the current snapshot in place.
func (s *Sampler) Refresh(ctx context.Context) error {
	entries, err := s.catalog.ListEntries(ctx)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	if len(entries) == 0 {
		return fmt.Errorf("load catalog: %w", domain.ErrNotInitialized)
	}

	next := &snapshot{
		version:  s.version.Add(1),
		full:     newWeightTable(entries, s.base),
		byCutoff: make(map[int]*weightTable, len(s.cutoffs)),
	}
	for _, max := range s.cutoffs {
		if max < 0 {
			continue
		}
		subset := make([]domain.CatalogEntry, 0, len(entries))
		for _, e := range entries {
			if e.Rarity <= max {
				subset = append(subset, e)
			}
		}
		if len(subset) > 0 {
			next.byCutoff[max] = newWeightTable(subset, s.base)
		}
	}

	s.snap.Store(next)
	s.logger.Info("reward tables rebuilt",
		zap.Uint64("version", next.version),
		zap.Int("items", next.full.size()),
	)
	return nil
}

// Pull draws one item from the full catalog table.
func (s *Sampler) Pull() (string, int, error) {
	snap := s.snap.Load()
	if snap == nil || snap.full.size() == 0 {
		return "", 0, domain.ErrNotInitialized
	}
	item, rarity := snap.full.draw(s.uniform())
	return item, rarity, nil
}

// PullMaxRarity draws from the reduced table for the given rarity ceiling.
// A negative ceiling means no cutoff. Ceilings that exclude every item fail
// with ErrNotInitialized rather than drawing from nothing.
func (s *Sampler) PullMaxRarity(maxRarity int) (string, int, error) {
	if maxRarity < 0 {
		return s.Pull()
	}
	snap := s.snap.Load()
	if snap == nil {
		return "", 0, domain.ErrNotInitialized
	}
	table, ok := snap.byCutoff[maxRarity]
	if !ok {
		// Unregistered cutoff: reduce on the fly. O(n), only hit when a
		// tier is added without restarting.
		table = s.reduce(snap.full, maxRarity)
		if table == nil {
			return "", 0, domain.ErrNotInitialized
		}
	}
	item, rarity := table.draw(s.uniform())
	return item, rarity, nil
}

func (s *Sampler) reduce(full *weightTable, maxRarity int) *weightTable {
	entries := make([]domain.CatalogEntry, 0, full.size())
	for i, id := range full.items {
		if full.rarities[i] <= maxRarity {
			entries = append(entries, domain.CatalogEntry{ItemID: id, Rarity: full.rarities[i]})
		}
	}
	if len(entries) == 0 {
		return nil
	}
	return newWeightTable(entries, s.base)
}

// Version reports the snapshot generation, 0 before the first Refresh.
func (s *Sampler) Version() uint64 {
	snap := s.snap.Load()
	if snap == nil {
		return 0
	}
	return snap.version
}
