package models

import "sync"

// A sequential id generator.
type SequentialIDGenerator struct {
	mutex       sync.Mutex
	currentID   uint32
	reusableIDs []uint32
}

// New returns a sequential id. Released ids are handed out again first,
// lowest first.
func (g *SequentialIDGenerator) New() uint32 {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if len(g.reusableIDs) != 0 {
		lowest := 0
		for i, id := range g.reusableIDs {
			if id < g.reusableIDs[lowest] {
				lowest = i
			}
		}

		id := g.reusableIDs[lowest]
		g.reusableIDs = append(g.reusableIDs[:lowest], g.reusableIDs[lowest+1:]...)
		return id
	}

	g.currentID++
	return g.currentID
}

// Reuse releases the given id so New can return it again. Releasing an id
// twice or an id that was never issued is ignored.
func (g *SequentialIDGenerator) Reuse(id uint32) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if id == 0 || id > g.currentID {
		return
	}
	for _, reusable := range g.reusableIDs {
		if reusable == id {
			return
		}
	}

	g.reusableIDs = append(g.reusableIDs, id)
}
