package coins

import (
	"fmt"
	"image"
	"sync"

	"github.com/ironsheep/coin-counter/internal/imaging"
)

// Profiler produces the edge maps compared by the rotational matcher.
//
// Template edge maps depend only on the library and the target width, so they
// are computed once per (template, width) pair and shared by every caller.
// A Profiler is safe for concurrent use.
type Profiler struct {
	lib    *Library
	params imaging.EdgeParams

	mu    sync.RWMutex
	cache map[profileKey]*image.Gray
}

type profileKey struct {
	index int
	width int
}

// NewProfiler creates a profiler for the templates of lib.
func NewProfiler(lib *Library, params imaging.EdgeParams) *Profiler {
	return &Profiler{
		lib:    lib,
		params: params,
		cache:  make(map[profileKey]*image.Gray),
	}
}

// ProfilePatch returns the edge map of a masked coin patch.
func (p *Profiler) ProfilePatch(patch image.Image) (*image.Gray, error) {
	edges, err := imaging.BuildEdgeMap(patch, p.params)
	if err != nil {
		return nil, fmt.Errorf("failed to profile patch: %w", err)
	}
	return edges, nil
}

// TemplateEdges returns the edge map of template index after scaling it
// isotropically to the given width.
func (p *Profiler) TemplateEdges(index, width int) (*image.Gray, error) {
	if index < 0 || index >= p.lib.Len() {
		return nil, fmt.Errorf("template index %d out of range", index)
	}
	if width < 1 {
		return nil, fmt.Errorf("template width must be positive, got %d", width)
	}

	key := profileKey{index: index, width: width}
	p.mu.RLock()
	edges, ok := p.cache[key]
	p.mu.RUnlock()
	if ok {
		return edges, nil
	}

	scaled := imaging.ScaleToWidth(p.lib.Image(index), width)
	edges, err := imaging.BuildEdgeMap(scaled, p.params)
	if err != nil {
		return nil, fmt.Errorf("failed to profile template %s: %w", p.lib.Key(index).Name(), err)
	}

	p.mu.Lock()
	if cached, ok := p.cache[key]; ok {
		edges = cached
	} else {
		p.cache[key] = edges
	}
	p.mu.Unlock()
	return edges, nil
}

// CacheSize returns the number of cached template edge maps.
func (p *Profiler) CacheSize() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.cache)
}
