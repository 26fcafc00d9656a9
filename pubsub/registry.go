package pubsub

import "sync"

// registry tracks live subscriptions with dual indexing: by id for stop and
// lookup, by publication name for stats and shutdown.
type registry struct {
	byID   map[string]*subscription
	byName map[string][]*subscription
	mu     sync.RWMutex
}

func newRegistry() *registry {
	return &registry{
		byID:   make(map[string]*subscription),
		byName: make(map[string][]*subscription),
	}
}

// register adds sub to both indexes. Registering twice is a no-op.
func (r *registry) register(sub *subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[sub.id]; exists {
		return
	}
	r.byID[sub.id] = sub
	r.byName[sub.name] = append(r.byName[sub.name], sub)
}

// unregister removes sub from both indexes. Missing entries are ignored.
func (r *registry) unregister(sub *subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[sub.id]; !exists {
		return
	}
	delete(r.byID, sub.id)

	r.byName[sub.name] = removeSubscription(r.byName[sub.name], sub)
	if len(r.byName[sub.name]) == 0 {
		delete(r.byName, sub.name)
	}
}

func (r *registry) get(id string) (*subscription, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sub, ok := r.byID[id]
	return sub, ok
}

// byPublication returns a copy of the live subscriptions to name.
func (r *registry) byPublication(name string) []*subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subs := r.byName[name]
	result := make([]*subscription, len(subs))
	copy(result, subs)
	return result
}

func (r *registry) all() []*subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*subscription, 0, len(r.byID))
	for _, sub := range r.byID {
		result = append(result, sub)
	}
	return result
}

func (r *registry) counts() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]int, len(r.byName))
	for name, subs := range r.byName {
		result[name] = len(subs)
	}
	return result
}

func removeSubscription(subs []*subscription, target *subscription) []*subscription {
	for i, sub := range subs {
		if sub == target {
			return append(subs[:i], subs[i+1:]...)
		}
	}
	return subs
}
