package server

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/ironsheep/coin-counter/internal/imaging"
	"github.com/ironsheep/coin-counter/internal/render"
)

func TestNew(t *testing.T) {
	s := New(nil)
	if s == nil {
		t.Fatal("New() returned nil")
	}
	if s.cache == nil {
		t.Fatal("New() did not initialize cache")
	}
	if s.style != render.DefaultStyle() {
		t.Errorf("New() style = %+v, want default", s.style)
	}
}

func TestNew_Options(t *testing.T) {
	cache := imaging.NewImageCache()
	style := render.DefaultStyle()
	style.BoxColor = "#0000FF"

	s := New(nil, WithCache(cache), WithStyle(style))
	if s.cache != cache {
		t.Error("WithCache did not share the cache")
	}
	if s.style.BoxColor != "#0000FF" {
		t.Errorf("WithStyle: got %q", s.style.BoxColor)
	}

	// A nil cache keeps the default one.
	if New(nil, WithCache(nil)).cache == nil {
		t.Error("WithCache(nil) cleared the cache")
	}
}

func TestServe(t *testing.T) {
	s := New(nil)
	input := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize"}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		``,
		`not json`,
		`{"jsonrpc":"2.0","id":2,"method":"ping"}`,
		`{"jsonrpc":"2.0","id":3,"method":"bogus"}`,
	}, "\n")

	var out bytes.Buffer
	if err := s.Serve(strings.NewReader(input), &out); err != nil {
		t.Fatalf("Serve failed: %v", err)
	}

	dec := json.NewDecoder(&out)
	var ids []float64
	var codes []int
	for dec.More() {
		var resp MCPResponse
		if err := dec.Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		ids = append(ids, resp.ID.(float64))
		if resp.Error != nil {
			codes = append(codes, resp.Error.Code)
		}
	}

	if len(ids) != 3 || ids[0] != 1 || ids[1] != 2 || ids[2] != 3 {
		t.Errorf("response ids: got %v, want [1 2 3]", ids)
	}
	if len(codes) != 1 || codes[0] != -32601 {
		t.Errorf("error codes: got %v, want [-32601]", codes)
	}
}

func TestHandleRequest(t *testing.T) {
	s := New(nil)

	tests := []struct {
		method   string
		id       interface{}
		wantNil  bool
		wantCode int
	}{
		{"initialize", 1, false, 0},
		{"ping", "ping-1", false, 0},
		{"tools/list", 2, false, 0},
		{"notifications/initialized", nil, true, 0},
		{"resources/list", 3, false, -32601},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			resp := s.handleRequest(&MCPRequest{JSONRPC: "2.0", ID: tt.id, Method: tt.method})
			if tt.wantNil {
				if resp != nil {
					t.Errorf("got response %+v, want none", resp)
				}
				return
			}
			if resp == nil {
				t.Fatal("handleRequest returned nil")
			}
			if resp.ID != tt.id || resp.JSONRPC != "2.0" {
				t.Errorf("envelope: got id %v jsonrpc %q", resp.ID, resp.JSONRPC)
			}
			code := 0
			if resp.Error != nil {
				code = resp.Error.Code
			}
			if code != tt.wantCode {
				t.Errorf("error code: got %d, want %d", code, tt.wantCode)
			}
		})
	}
}

func TestHandleInitialize(t *testing.T) {
	resp := New(nil).handleInitialize(&MCPRequest{JSONRPC: "2.0", ID: "init-1"})

	result := resp.Result.(map[string]interface{})
	if result["protocolVersion"] != "2024-11-05" {
		t.Errorf("protocolVersion: got %v", result["protocolVersion"])
	}
	serverInfo := result["serverInfo"].(map[string]interface{})
	if serverInfo["name"] != "coin-counter" || serverInfo["version"] != Version {
		t.Errorf("serverInfo: got %v", serverInfo)
	}
}
