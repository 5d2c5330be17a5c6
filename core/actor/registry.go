package actor

import (
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// ResponderID is the identity of the single actor allowed to publish
// responses onto the bus. See core/proxy.
const ResponderID = "actorbus.responder"

type (
	// Ref is a deliverable handle to a live actor.
	Ref interface {
		ID() string
		// Tell enqueues msg without waiting for it to be processed.
		Tell(msg any) error
	}

	RegistryEventKind int

	RegistryEvent struct {
		Kind RegistryEventKind
		ID   string
	}
)

const (
	Registered RegistryEventKind = iota
	Unregistered
)

func (k RegistryEventKind) String() string {
	switch k {
	case Registered:
		return "registered"
	case Unregistered:
		return "unregistered"
	default:
		return fmt.Sprintf("RegistryEventKind(%d)", int(k))
	}
}

// NewID returns a generated identity for actors created without one.
func NewID() string { return uuid.New().URN() }

// Registry maps identities to live actors. Actors add themselves on Start and
// remove themselves when they stop or fail. It is safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	refs map[string]Ref

	muWatch  sync.Mutex
	watchSeq int
	watchers map[int]func(RegistryEvent)
}

func NewRegistry() *Registry {
	return &Registry{
		refs:     make(map[string]Ref),
		watchers: make(map[int]func(RegistryEvent)),
	}
}

func (r *Registry) Register(ref Ref) error {
	id := ref.ID()
	r.mu.Lock()
	if _, ok := r.refs[id]; ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateIdentity, id)
	}
	r.refs[id] = ref
	r.mu.Unlock()

	r.notify(RegistryEvent{Kind: Registered, ID: id})
	return nil
}

func (r *Registry) Resolve(id string) (Ref, error) {
	r.mu.RLock()
	ref, ok := r.refs[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownIdentity, id)
	}
	return ref, nil
}

// Tell resolves id and tells it msg.
func (r *Registry) Tell(id string, msg any) error {
	ref, err := r.Resolve(id)
	if err != nil {
		return err
	}
	return ref.Tell(msg)
}

// Unregister removes id. Removing an unknown id is a no-op.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	_, ok := r.refs[id]
	delete(r.refs, id)
	r.mu.Unlock()

	if ok {
		r.notify(RegistryEvent{Kind: Unregistered, ID: id})
	}
}

// remove unregisters ref only if it still owns its identity.
func (r *Registry) remove(ref Ref) {
	id := ref.ID()
	r.mu.Lock()
	cur, ok := r.refs[id]
	ok = ok && cur == ref
	if ok {
		delete(r.refs, id)
	}
	r.mu.Unlock()

	if ok {
		r.notify(RegistryEvent{Kind: Unregistered, ID: id})
	}
}

// IDs returns the registered identities, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.refs))
	for id := range r.refs {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	slices.Sort(ids)
	return ids
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.refs)
}

// Watch calls fn for every later registration change until cancel is called.
// fn runs on the goroutine that changed the registry and must not block.
func (r *Registry) Watch(fn func(RegistryEvent)) (cancel func()) {
	r.muWatch.Lock()
	defer r.muWatch.Unlock()
	r.watchSeq++
	id := r.watchSeq
	r.watchers[id] = fn
	return func() {
		r.muWatch.Lock()
		defer r.muWatch.Unlock()
		delete(r.watchers, id)
	}
}

func (r *Registry) notify(ev RegistryEvent) {
	r.muWatch.Lock()
	fns := make([]func(RegistryEvent), 0, len(r.watchers))
	for _, fn := range r.watchers {
		fns = append(fns, fn)
	}
	r.muWatch.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
