package persist

// Buffered is a persistent variable with a live in-memory copy of its value. Reads and in-memory
// mutations through Get, Set, and Update never touch the backend; the persisted bytes change only
// on an explicit Save. This trades one resident copy of the value for backend access on every
// read, which matters for hot values behind a paged flash backend.
type Buffered[T any] struct {
	variable *Var[T]
	value    T
}

// NewBuffered declares a buffered persistent variable under the provided name. On the store's
// first boot both the persisted bytes and the in-memory copy are seeded with the initial value;
// on every later boot the in-memory copy is loaded from the backend once.
func NewBuffered[T any](layout *Layout, name string, initial T) (*Buffered[T], error) {
	variable, err := NewVar[T](layout, name, initial)
	if err != nil {
		return nil, err
	}

	buffered := &Buffered[T]{
		variable: variable,
	}

	first, err := layout.FirstBoot()
	if err != nil {
		return nil, err
	}
	if first {
		buffered.value = initial
		return buffered, nil
	}

	buffered.value, err = variable.Load()
	if err != nil {
		return nil, err
	}

	return buffered, nil
}

// Get retrieves the in-memory copy of the value without touching the backend
func (b *Buffered[T]) Get() T {
	return b.value
}

// Set replaces the in-memory copy of the value without touching the backend. The new value is not
// persisted until Save is called.
func (b *Buffered[T]) Set(value T) {
	b.value = value
}

// Update invokes the provided callback with the in-memory copy of the value, allowing it to be
// mutated in place without touching the backend. The mutated value is not persisted until Save is
// called.
func (b *Buffered[T]) Update(mutate func(value *T)) {
	mutate(&b.value)
}

// Save persists the current in-memory copy of the value. No implicit save ever occurs.
func (b *Buffered[T]) Save() error {
	return b.variable.Store(b.value)
}

// Load re-reads the persisted bytes into the in-memory copy, discarding any unsaved mutations
func (b *Buffered[T]) Load() error {
	value, err := b.variable.Load()
	if err != nil {
		return err
	}

	b.value = value
	return nil
}

// Address retrieves the first byte of the range reserved for this variable
func (b *Buffered[T]) Address() int {
	return b.variable.Address()
}

// Size retrieves the width in bytes of the range reserved for this variable
func (b *Buffered[T]) Size() int {
	return b.variable.Size()
}
