package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Test Plan for scope helpers:
// - qualify joins scope and name and leaves top-level names alone
// - joinScope drops empty segments
// - scopeAbove strips exactly the final segment
// - implScope finds the module prefix ahead of the impl marker

// Test: qualify joins scope and name and leaves top-level names alone
func TestScope_Qualify(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "render", qualify("", "render", "::"))
	assert.Equal(t, "gfx::render", qualify("gfx", "render", "::"))
	assert.Equal(t, "app.models.User", qualify("app.models", "User", "."))
}

// Test: joinScope drops empty segments
func TestScope_JoinScope(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Point::new", joinScope("::", "", "Point", "new"))
	assert.Equal(t, "m::Point::new", joinScope("::", "m", "Point", "new"))
	assert.Equal(t, "", joinScope("::"))
	assert.Equal(t, "solo", joinScope("::", "", "solo", ""))
}

// Test: scopeAbove strips exactly the final segment
func TestScope_ScopeAbove(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a::b", scopeAbove("a::b::c", "::"))
	assert.Equal(t, "", scopeAbove("solo", "::"))
	assert.Equal(t, "m::<Point as Drawable>", scopeAbove("m::<Point as Drawable>::area", "::"))
	assert.Equal(t, "Widget", scopeAbove("Widget.refresh", "."))
}

// Test: implScope finds the module prefix ahead of the impl marker
func TestScope_ImplScope(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "m", implScope("m::impl Point"))
	assert.Equal(t, "", implScope("impl Point"))
	assert.Equal(t, "a::b", implScope("a::b::<Point as Drawable>"))
	assert.Equal(t, "", implScope("<Point as Drawable>"))
	assert.Equal(t, "m", implScope("m::impl foo::Bar"))
}
