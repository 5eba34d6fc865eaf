package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func pathProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Absolute path to the image file",
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Image Information
		{
			Name:        "image_load",
			Description: "Load an image file and return its dimensions and format.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},

		// Coin Pipeline
		{
			Name:        "coins_detect",
			Description: "Find the coins in a photograph, classify each as a penny, nickel, dime or quarter (heads or tails up) and return the total value.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"acceptance_threshold": map[string]interface{}{
						"type":        "number",
						"description": "Minimum edge overlap percentage for a candidate to count as a coin. Default 38",
						"default":     38.0,
					},
					"tolerance": map[string]interface{}{
						"type":        "number",
						"description": "Lower bound of the contour to ellipse area ratio (upper bound is 2 - tolerance). Default 0.997",
						"default":     0.997,
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "coins_candidates",
			Description: "Return the elliptical outlines that could be coins, without classifying them.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"tolerance": map[string]interface{}{
						"type":        "number",
						"description": "Lower bound of the contour to ellipse area ratio. Default 0.997",
						"default":     0.997,
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "coins_edge_map",
			Description: "Return the binary edge map used to find coin outlines as a base64-encoded PNG.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"threshold_low": map[string]interface{}{
						"type":        "integer",
						"description": "Low hysteresis threshold. Default 25",
						"default":     25,
					},
					"threshold_high": map[string]interface{}{
						"type":        "integer",
						"description": "High hysteresis threshold. Default 50",
						"default":     50,
					},
					"profile": map[string]interface{}{
						"type":        "boolean",
						"description": "Use the lighter patch profile settings instead of the outline settings",
						"default":     false,
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "coins_annotate",
			Description: "Detect coins and return the image with candidate outlines, coin boxes, labels and the total value drawn on it, as a base64-encoded PNG.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "coins_history",
			Description: "List the most recent recorded detection runs, newest first.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"limit": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum number of runs to return. Default 10",
						"default":     defaultHistoryLimit,
					},
				},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
