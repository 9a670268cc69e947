package status

// HealthResponse is the payload for GET /healthz.
type HealthResponse struct {
	Status    string `json:"status"`
	Cycles    uint64 `json:"cycles"`
	LastCycle string `json:"last_cycle,omitempty"` // RFC3339
}

// StatusResponse is the payload for GET /api/v1/status.
type StatusResponse struct {
	Started   string            `json:"started"` // RFC3339
	Cycles    uint64            `json:"cycles"`
	LastCycle string            `json:"last_cycle,omitempty"`
	Monitors  []MonitorStatus   `json:"monitors"`
	Listeners []ListenerBinding `json:"listeners"`
}

// ListenerBinding is one wired listener as reported by the status API.
type ListenerBinding struct {
	Name    string `json:"name"`
	Monitor string `json:"monitor"`
	Action  string `json:"action"`
}

type errorResponse struct {
	Error string `json:"error"`
}
