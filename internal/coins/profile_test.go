package coins

import (
	"sync"
	"testing"

	"github.com/ironsheep/coin-counter/internal/imaging"
)

func TestProfiler_TemplateEdgesCached(t *testing.T) {
	p := NewProfiler(testLibrary(t), DefaultConfig().ProfileEdge)

	first, err := p.TemplateEdges(6, 80)
	if err != nil {
		t.Fatalf("TemplateEdges failed: %v", err)
	}
	if first.Bounds().Dx() != 80 || first.Bounds().Dy() != 80 {
		t.Errorf("size: got %v, want 80x80", first.Bounds())
	}
	if imaging.CountEdges(first) == 0 {
		t.Error("template edge map is empty")
	}

	second, err := p.TemplateEdges(6, 80)
	if err != nil {
		t.Fatalf("second TemplateEdges failed: %v", err)
	}
	if first != second {
		t.Error("second call did not return the cached edge map")
	}

	if _, err := p.TemplateEdges(6, 90); err != nil {
		t.Fatalf("TemplateEdges failed: %v", err)
	}
	if p.CacheSize() != 2 {
		t.Errorf("CacheSize: got %d, want 2", p.CacheSize())
	}
}

func TestProfiler_TemplateEdgesErrors(t *testing.T) {
	p := NewProfiler(testLibrary(t), DefaultConfig().ProfileEdge)

	tests := []struct {
		name         string
		index, width int
	}{
		{"negative index", -1, 50},
		{"index past end", 8, 50},
		{"zero width", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := p.TemplateEdges(tt.index, tt.width); err == nil {
				t.Error("TemplateEdges should fail")
			}
		})
	}
}

func TestProfiler_Concurrent(t *testing.T) {
	p := NewProfiler(testLibrary(t), DefaultConfig().ProfileEdge)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := p.TemplateEdges(i%8, 64); err != nil {
				t.Errorf("TemplateEdges failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if p.CacheSize() != 8 {
		t.Errorf("CacheSize: got %d, want 8", p.CacheSize())
	}
}

func TestProfiler_ProfilePatch(t *testing.T) {
	p := NewProfiler(testLibrary(t), DefaultConfig().ProfileEdge)

	edges, err := p.ProfilePatch(createTemplate(2, 60))
	if err != nil {
		t.Fatalf("ProfilePatch failed: %v", err)
	}
	if edges.Bounds().Dx() != 60 {
		t.Errorf("width: got %d, want 60", edges.Bounds().Dx())
	}

	if _, err := p.ProfilePatch(createTemplate(2, 0)); err == nil {
		t.Error("ProfilePatch should fail on an empty patch")
	}
}
