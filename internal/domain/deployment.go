package domain

import "time"

// DeployAction is what the reconciler did with a workflow remotely.
type DeployAction string

const (
	ActionNone    DeployAction = ""
	ActionCreated DeployAction = "created"
	ActionUpdated DeployAction = "updated"
	// ActionCreate and ActionUpdate are reported by dry runs.
	ActionCreate DeployAction = "would-create"
	ActionUpdate DeployAction = "would-update"
)

// DeploymentResult is the outcome of reconciling one workflow file.
// RemoteID is set iff Success; Error is set iff !Success.
type DeploymentResult struct {
	WorkflowName string       `json:"workflow"`
	File         string       `json:"file,omitempty"`
	Success      bool         `json:"success"`
	RemoteID     string       `json:"id,omitempty"`
	Error        string       `json:"error,omitempty"`
	Action       DeployAction `json:"action,omitempty"`
	Activated    bool         `json:"activated,omitempty"`
	Warnings     []string     `json:"warnings,omitempty"`
}

// Succeeded builds a successful result.
func Succeeded(name, remoteID string, action DeployAction) DeploymentResult {
	return DeploymentResult{WorkflowName: name, Success: true, RemoteID: remoteID, Action: action}
}

// Failed builds a failed result from err.
func Failed(name string, err error) DeploymentResult {
	return DeploymentResult{WorkflowName: name, Success: false, Error: err.Error()}
}

// Summary aggregates one deployment run.
type Summary struct {
	RunID     string             `json:"run_id"`
	Directory string             `json:"directory,omitempty"`
	StartedAt time.Time          `json:"started_at"`
	Duration  time.Duration      `json:"duration"`
	DryRun    bool               `json:"dry_run,omitempty"`
	Total     int                `json:"total"`
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
	Results   []DeploymentResult `json:"results"`
}

// Add appends a result and updates the counters.
func (s *Summary) Add(r DeploymentResult) {
	s.Results = append(s.Results, r)
	s.Total++
	if r.Success {
		s.Succeeded++
	} else {
		s.Failed++
	}
}

// Failures returns the failed results in run order.
func (s *Summary) Failures() []DeploymentResult {
	var out []DeploymentResult
	for _, r := range s.Results {
		if !r.Success {
			out = append(out, r)
		}
	}
	return out
}

// OK reports whether every workflow deployed.
func (s *Summary) OK() bool {
	return s.Failed == 0
}
