package loader

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/coral-mesh/symload/internal/symload/walker"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	assert.True(t, r.Add("/b/libx.so", walker.CategoryObject, "id-x"))
	assert.True(t, r.Add("/a/liby.so", walker.CategoryObject, ""))
	assert.False(t, r.Add("/b/libx.so", walker.CategoryObject, "id-other"), "duplicate path")
	assert.True(t, r.Add("/b/libx.so.debug", walker.CategoryDebugInfo, "id-x"))

	assert.True(t, r.HasPath("/b/libx.so"))
	assert.False(t, r.HasPath("/c/libz.so"))

	p, ok := r.PathForIdentity(walker.CategoryObject, "id-x")
	assert.True(t, ok)
	assert.Equal(t, "/b/libx.so", p)

	p, ok = r.PathForIdentity(walker.CategoryDebugInfo, "id-x")
	assert.True(t, ok)
	assert.Equal(t, "/b/libx.so.debug", p)

	_, ok = r.PathForIdentity(walker.CategorySymbolMap, "id-x")
	assert.False(t, ok)
	_, ok = r.PathForIdentity(walker.CategoryObject, "")
	assert.False(t, ok)
	_, ok = r.PathForIdentity(walker.CategoryObject, "id-other")
	assert.False(t, ok)

	assert.Equal(t, 3, r.Len())
	assert.Equal(t, []Entry{
		{Path: "/a/liby.so"},
		{Path: "/b/libx.so", Identity: "id-x"},
		{Path: "/b/libx.so.debug", Identity: "id-x"},
	}, r.Entries())
}
