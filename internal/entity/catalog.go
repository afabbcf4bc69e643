package entity

import (
	"fmt"

	"github.com/google/uuid"
)

// Warning records a recoverable per-entity failure during dispatch.
// Warnings ride alongside the catalog so a caller never receives a
// silently truncated result.
type Warning struct {
	Handler string `json:"handler"`
	Unit    string `json:"unit"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s (%s)", w.Handler, w.Message, w.Unit)
}

// Catalog accumulates the entities extracted from one source unit in
// match discovery order. It is exclusively owned by its extraction task
// until handed to the caller; nothing is mutated after that handoff.
type Catalog struct {
	Unit     string
	Language string
	RunID    string // Distinguishes extraction runs over the same unit

	entities []Entity
	warnings []Warning
	seen     map[string]struct{}
}

// NewCatalog creates an empty catalog for one source unit.
func NewCatalog(unit, language string) *Catalog {
	return &Catalog{
		Unit:     unit,
		Language: language,
		RunID:    uuid.New().String(),
		seen:     make(map[string]struct{}),
	}
}

// Add appends an entity, enforcing the no-duplicate invariant. Two
// entities sharing (entity type, name, handler, source range) indicate a
// matcher fault, so Add reports it instead of storing the duplicate.
func (c *Catalog) Add(e Entity) error {
	key := e.Key()
	if _, ok := c.seen[key]; ok {
		return fmt.Errorf("duplicate entity %s %q from handler %s at %s", e.Type, e.Name, e.Handler, e.Location)
	}
	c.seen[key] = struct{}{}
	c.entities = append(c.entities, e)
	return nil
}

// Warn records a recoverable dispatch failure without interrupting the run.
func (c *Catalog) Warn(handler, format string, args ...any) {
	c.warnings = append(c.warnings, Warning{
		Handler: handler,
		Unit:    c.Unit,
		Message: fmt.Sprintf(format, args...),
	})
}

// Entities returns the accumulated entities in insertion order.
func (c *Catalog) Entities() []Entity {
	return c.entities
}

// Warnings returns the recoverable failures recorded during dispatch.
func (c *Catalog) Warnings() []Warning {
	return c.warnings
}

// Len reports the number of entities collected so far.
func (c *Catalog) Len() int {
	return len(c.entities)
}
