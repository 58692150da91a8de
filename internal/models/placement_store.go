package models

import (
	"errors"
	"sort"
	"sync/atomic"
)

// ErrPlacementNotFound is returned when a placement id is unknown.
var ErrPlacementNotFound = errors.New("placement not found")

// PlacementStore provides thread-safe access to placement presets.
type PlacementStore interface {
	// Read operations (hot path)
	GetPlacement(id string) *Placement
	GetAllPlacements() []Placement

	// Write operations (reload and CRUD path)
	ReloadAll(placements []Placement) error
	UpsertPlacement(placement Placement) error
	DeletePlacement(id string) error
}

// placementSnapshot is an immutable view of all placements.
type placementSnapshot struct {
	placements []Placement
	index      map[string]*Placement
}

// InMemoryPlacementStore implements PlacementStore with atomic snapshot swaps.
// Readers never block; writers build a new snapshot and publish it.
type InMemoryPlacementStore struct {
	data atomic.Pointer[placementSnapshot]
}

// NewInMemoryPlacementStore creates an empty store.
func NewInMemoryPlacementStore() *InMemoryPlacementStore {
	s := &InMemoryPlacementStore{}
	s.data.Store(newPlacementSnapshot(nil))
	return s
}

func newPlacementSnapshot(placements []Placement) *placementSnapshot {
	pls := make([]Placement, len(placements))
	copy(pls, placements)
	sort.Slice(pls, func(i, j int) bool { return pls[i].ID < pls[j].ID })

	index := make(map[string]*Placement, len(pls))
	for i := range pls {
		index[pls[i].ID] = &pls[i]
	}
	return &placementSnapshot{placements: pls, index: index}
}

// GetPlacement returns a copy of the placement with the given id, or nil.
func (s *InMemoryPlacementStore) GetPlacement(id string) *Placement {
	if p, ok := s.data.Load().index[id]; ok {
		cp := *p
		return &cp
	}
	return nil
}

// GetAllPlacements returns all placements ordered by id.
func (s *InMemoryPlacementStore) GetAllPlacements() []Placement {
	data := s.data.Load()
	result := make([]Placement, len(data.placements))
	copy(result, data.placements)
	return result
}

// ReloadAll atomically replaces every placement.
func (s *InMemoryPlacementStore) ReloadAll(placements []Placement) error {
	s.data.Store(newPlacementSnapshot(placements))
	return nil
}

// UpsertPlacement inserts or replaces a placement by id.
func (s *InMemoryPlacementStore) UpsertPlacement(placement Placement) error {
	for {
		current := s.data.Load()
		next := make([]Placement, 0, len(current.placements)+1)
		for _, p := range current.placements {
			if p.ID != placement.ID {
				next = append(next, p)
			}
		}
		next = append(next, placement)
		if s.data.CompareAndSwap(current, newPlacementSnapshot(next)) {
			return nil
		}
	}
}

// DeletePlacement removes a placement by id.
func (s *InMemoryPlacementStore) DeletePlacement(id string) error {
	for {
		current := s.data.Load()
		if _, ok := current.index[id]; !ok {
			return ErrPlacementNotFound
		}
		next := make([]Placement, 0, len(current.placements))
		for _, p := range current.placements {
			if p.ID != id {
				next = append(next, p)
			}
		}
		if s.data.CompareAndSwap(current, newPlacementSnapshot(next)) {
			return nil
		}
	}
}
