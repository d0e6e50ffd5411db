package coverage

import (
	"runtime"
	"sync"
	"weak"

	"tia.dev/pkg/tia/internal/model"
)

// InstanceArena hands out stable integer ids for tracked objects. Objects are
// held weakly; an id is forgotten once its object is collected.
type InstanceArena struct {
	mu   sync.Mutex
	ids  map[any]model.InstanceID
	next model.InstanceID
}

// NewInstanceArena creates an empty arena.
func NewInstanceArena() *InstanceArena {
	return &InstanceArena{ids: map[any]model.InstanceID{}}
}

// Len returns the number of live tracked objects.
func (a *InstanceArena) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return len(a.ids)
}

func (a *InstanceArena) forget(key any) {
	a.mu.Lock()
	delete(a.ids, key)
	a.mu.Unlock()
}

// Track returns the id of obj, assigning the next one on first sight.
func Track[T any](a *InstanceArena, obj *T) model.InstanceID {
	if obj == nil {
		return 0
	}

	key := weak.Make(obj)

	a.mu.Lock()
	defer a.mu.Unlock()

	if id, ok := a.ids[key]; ok {
		return id
	}

	a.next++
	a.ids[key] = a.next
	runtime.AddCleanup(obj, a.forget, any(key))

	return a.next
}
