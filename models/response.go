package models

// StatusResponse is the response for GET /api/v1/crawl/status.
type StatusResponse struct {
	Success  bool          `json:"success"`
	Snapshot CrawlSnapshot `json:"snapshot"`

	// Report is set once the crawl has finished.
	Report *Report `json:"report,omitempty"`
}

// ActionResponse is the response for the resume and stop control endpoints.
type ActionResponse struct {
	Success bool   `json:"success"`
	Action  string `json:"action"`

	// Delivered is false when a resume signal arrived while no challenge was pending.
	Delivered bool `json:"delivered"`
}

// ErrorResponse wraps an ErrorDetail for API error replies.
type ErrorResponse struct {
	Success bool         `json:"success"`
	Error   *ErrorDetail `json:"error"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Phase   Phase  `json:"phase"`
	Uptime  string `json:"uptime"`
	Version string `json:"version"`
}
