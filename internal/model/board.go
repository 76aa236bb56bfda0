package model

import "encoding/json"

// Container is a named destination bucket and the fragments placed in it.
type Container struct {
	// Name is the container name, usually a CSS id selector like "#active-threads".
	Name string `json:"name"`

	// Fragments are the rendered items in insertion order.
	Fragments []string `json:"fragments"`

	// Placeholder is true when the only fragment is the "None" backfill.
	Placeholder bool `json:"placeholder,omitempty"`
}

// Board is the in-memory destination document: an ordered set of named
// containers. Containers are created on first use and keep the order in
// which they were first touched.
//
// Board is not safe for concurrent use. One board belongs to one run.
type Board struct {
	order   []string
	buckets map[string]*Container
}

// NewBoard returns an empty board.
func NewBoard() *Board {
	return &Board{
		order:   make([]string, 0),
		buckets: make(map[string]*Container),
	}
}

// Declare makes sure the named container exists without adding content.
// Declared containers show up in Containers even when they stay empty.
func (b *Board) Declare(name string) {
	b.bucket(name)
}

// Append places a fragment at the end of the named container.
func (b *Board) Append(name, fragment string) {
	c := b.bucket(name)
	c.Fragments = append(c.Fragments, fragment)
}

// Backfill places the placeholder fragment into the named container and
// marks it as a placeholder. It does nothing if the container has content.
func (b *Board) Backfill(name, placeholder string) bool {
	c := b.bucket(name)
	if len(c.Fragments) > 0 {
		return false
	}
	c.Fragments = append(c.Fragments, placeholder)
	c.Placeholder = true
	return true
}

// Count returns the number of fragments in the named container.
func (b *Board) Count(name string) int {
	if c, ok := b.buckets[name]; ok {
		return len(c.Fragments)
	}
	return 0
}

// Containers returns a copy of every container in first-touched order.
func (b *Board) Containers() []Container {
	out := make([]Container, 0, len(b.order))
	for _, name := range b.order {
		c := b.buckets[name]
		out = append(out, Container{
			Name:        c.Name,
			Fragments:   append([]string(nil), c.Fragments...),
			Placeholder: c.Placeholder,
		})
	}
	return out
}

// Container returns a copy of the named container and whether it exists.
func (b *Board) Container(name string) (Container, bool) {
	c, ok := b.buckets[name]
	if !ok {
		return Container{}, false
	}
	return Container{
		Name:        c.Name,
		Fragments:   append([]string(nil), c.Fragments...),
		Placeholder: c.Placeholder,
	}, true
}

// MarshalJSON encodes the board as its ordered container list.
func (b *Board) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.Containers())
}

// UnmarshalJSON restores a board from its ordered container list.
func (b *Board) UnmarshalJSON(data []byte) error {
	var containers []Container
	if err := json.Unmarshal(data, &containers); err != nil {
		return err
	}
	*b = *NewBoard()
	for _, c := range containers {
		bucket := b.bucket(c.Name)
		bucket.Fragments = append(bucket.Fragments, c.Fragments...)
		bucket.Placeholder = c.Placeholder
	}
	return nil
}

func (b *Board) bucket(name string) *Container {
	if c, ok := b.buckets[name]; ok {
		return c
	}
	c := &Container{Name: name, Fragments: make([]string, 0)}
	b.buckets[name] = c
	b.order = append(b.order, name)
	return c
}
