package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ironsheep/coin-counter/internal/coins"
	"github.com/ironsheep/coin-counter/internal/detection"
	"github.com/ironsheep/coin-counter/internal/imaging"
	"github.com/ironsheep/coin-counter/internal/render"
)

// ErrNoLibrary is returned by the coin tools when the server was started
// without a template library.
var ErrNoLibrary = errors.New("no template library loaded")

// ErrNoHistory is returned by coins_history when no database is configured.
var ErrNoHistory = errors.New("results history is not enabled")

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "image_load", "coins_detect").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case "image_load":
		return s.handleImageLoad(args)

	case "coins_detect":
		return s.handleCoinsDetect(args)
	case "coins_candidates":
		return s.handleCoinsCandidates(args)
	case "coins_edge_map":
		return s.handleCoinsEdgeMap(args)
	case "coins_annotate":
		return s.handleCoinsAnnotate(args)
	case "coins_history":
		return s.handleCoinsHistory(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// === Image Information ===

type imageLoadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}

// === Coin Pipeline ===

type coinsDetectArgs struct {
	Path                string   `json:"path"`
	AcceptanceThreshold *float64 `json:"acceptance_threshold"`
	Tolerance           *float64 `json:"tolerance"`
}

// candidateInfo is the transport form of an ellipse candidate.
type candidateInfo struct {
	Index   int               `json:"index"`
	Ellipse detection.Ellipse `json:"ellipse"`
	Bounds  detection.Bounds  `json:"bounds"`
	Area    float64           `json:"area"`
	Ratio   float64           `json:"ratio"`
}

// coinInfo is a classified coin with the candidate it came from.
type coinInfo struct {
	Candidate    int     `json:"candidate"`
	Label        string  `json:"label"`
	Denomination string  `json:"denomination"`
	Side         string  `json:"side"`
	MatchPercent float64 `json:"match_percent"`
}

// detectResponse summarises a coins_detect run.
type detectResponse struct {
	Width      int               `json:"width"`
	Height     int               `json:"height"`
	Scale      float64           `json:"scale"`
	Candidates []candidateInfo   `json:"candidates"`
	Coins      []coinInfo        `json:"coins"`
	Counts     []coins.CoinCount `json:"counts"`
	TotalCents int               `json:"total_cents"`
	Total      string            `json:"total"`
	RunID      int64             `json:"run_id,omitempty"`
}

func (s *Server) handleCoinsDetect(args json.RawMessage) (interface{}, error) {
	var a coinsDetectArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	det, err := s.detectorFor(a.AcceptanceThreshold, a.Tolerance)
	if err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	res, err := det.Detect(img)
	if err != nil {
		return nil, err
	}

	resp := &detectResponse{
		Width:      res.Width,
		Height:     res.Height,
		Scale:      res.Scale,
		Candidates: make([]candidateInfo, 0, len(res.Detections)),
		Coins:      make([]coinInfo, 0),
		Counts:     res.Counts(),
		TotalCents: res.Total.Cents(),
		Total:      res.Total.String(),
	}
	for i, d := range res.Detections {
		resp.Candidates = append(resp.Candidates, toCandidateInfo(i, d.Candidate))
		if d.Coin == nil {
			continue
		}
		resp.Coins = append(resp.Coins, coinInfo{
			Candidate:    i,
			Label:        d.Coin.Label(),
			Denomination: d.Coin.Denomination.String(),
			Side:         d.Coin.Side.String(),
			MatchPercent: d.Coin.MatchPercent,
		})
	}

	if s.history != nil {
		id, err := s.history.Record(context.Background(), a.Path, res)
		if err != nil {
			return nil, fmt.Errorf("failed to record result: %w", err)
		}
		resp.RunID = id
	}
	return resp, nil
}

type coinsCandidatesArgs struct {
	Path      string   `json:"path"`
	Tolerance *float64 `json:"tolerance"`
}

// candidatesResponse lists the ellipse candidates of an image.
type candidatesResponse struct {
	Width      int             `json:"width"`
	Height     int             `json:"height"`
	Scale      float64         `json:"scale"`
	Count      int             `json:"count"`
	Candidates []candidateInfo `json:"candidates"`
}

func (s *Server) handleCoinsCandidates(args json.RawMessage) (interface{}, error) {
	var a coinsCandidatesArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	det, err := s.detectorFor(nil, a.Tolerance)
	if err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	src, scale, cands, err := det.Candidates(img)
	if err != nil {
		return nil, err
	}

	resp := &candidatesResponse{
		Width:      src.Bounds().Dx(),
		Height:     src.Bounds().Dy(),
		Scale:      scale,
		Count:      len(cands),
		Candidates: make([]candidateInfo, 0, len(cands)),
	}
	for i, c := range cands {
		resp.Candidates = append(resp.Candidates, toCandidateInfo(i, c))
	}
	return resp, nil
}

type coinsEdgeMapArgs struct {
	Path          string `json:"path"`
	ThresholdLow  int    `json:"threshold_low"`
	ThresholdHigh int    `json:"threshold_high"`
	Profile       bool   `json:"profile"`
}

func (s *Server) handleCoinsEdgeMap(args json.RawMessage) (interface{}, error) {
	var a coinsEdgeMapArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	cfg := s.config()
	params := cfg.PrimaryEdge
	if a.Profile {
		params = cfg.ProfileEdge
	}
	if a.ThresholdLow != 0 {
		params.Low = a.ThresholdLow
	}
	if a.ThresholdHigh != 0 {
		params.High = a.ThresholdHigh
	}

	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	src, _ := imaging.FitWithin(img, cfg.MaxInputDimension)
	return imaging.EdgeDetect(src, params)
}

type coinsAnnotateArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleCoinsAnnotate(args json.RawMessage) (interface{}, error) {
	var a coinsAnnotateArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if s.detector == nil {
		return nil, ErrNoLibrary
	}

	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	res, err := s.detector.Detect(img)
	if err != nil {
		return nil, err
	}
	return render.AnnotateBase64(res, s.style)
}

// defaultHistoryLimit is the number of runs coins_history returns when no
// positive limit is given.
const defaultHistoryLimit = 10

type coinsHistoryArgs struct {
	Limit int `json:"limit"`
}

func (s *Server) handleCoinsHistory(args json.RawMessage) (interface{}, error) {
	var a coinsHistoryArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if s.history == nil {
		return nil, ErrNoHistory
	}
	if a.Limit <= 0 {
		a.Limit = defaultHistoryLimit
	}
	return s.history.Recent(context.Background(), a.Limit)
}

// detectorFor returns the server's detector, or one derived from it with the
// given overrides when any is set. Derived detectors share the template edge
// cache and logger of the base detector.
func (s *Server) detectorFor(threshold, tolerance *float64) (*coins.Detector, error) {
	if s.detector == nil {
		return nil, ErrNoLibrary
	}
	if threshold == nil && tolerance == nil {
		return s.detector, nil
	}

	cfg := s.detector.Config()
	if threshold != nil {
		cfg = cfg.WithAcceptanceThreshold(*threshold)
	}
	if tolerance != nil {
		cfg = cfg.WithEllipseFitTolerance(*tolerance)
	}
	return s.detector.Derive(cfg)
}

// config returns the active pipeline configuration.
func (s *Server) config() coins.Config {
	if s.detector == nil {
		return coins.DefaultConfig()
	}
	return s.detector.Config()
}

func toCandidateInfo(i int, c detection.Candidate) candidateInfo {
	return candidateInfo{
		Index:   i,
		Ellipse: c.Ellipse,
		Bounds:  detection.BoundsOf(c.Bounds),
		Area:    c.Area,
		Ratio:   c.Ratio,
	}
}
