package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// WorkflowDefinition is a workflow as exported from n8n. Name is the identity
// used to match local files against remote workflows.
type WorkflowDefinition struct {
	ID          string                     `json:"id,omitempty"`
	Name        string                     `json:"name"`
	Nodes       []Node                     `json:"nodes"`
	Connections map[string]NodeConnections `json:"connections"`
	Active      bool                       `json:"active"`
	Settings    map[string]any             `json:"settings,omitempty"`
	StaticData  any                        `json:"staticData,omitempty"`
	Tags        []Tag                      `json:"tags,omitempty"`
	Meta        map[string]any             `json:"meta,omitempty"`
}

// Node is a single step in a workflow graph.
type Node struct {
	ID          string         `json:"id,omitempty"`
	Name        string         `json:"name,omitempty"`
	Type        string         `json:"type"`
	TypeVersion float64        `json:"typeVersion,omitempty"`
	Position    []float64      `json:"position,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	Credentials map[string]any `json:"credentials,omitempty"`
}

// NodeConnections holds the outgoing edges of one node, grouped by output index.
type NodeConnections struct {
	Main [][]Connection `json:"main"`
}

// Connection points at the node an output feeds into.
type Connection struct {
	Node  string `json:"node"`
	Type  string `json:"type"`
	Index int    `json:"index"`
}

// Tag is an n8n workflow tag.
type Tag struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// RemoteWorkflow is the part of a remote listing needed to reconcile by name.
type RemoteWorkflow struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ParseWorkflow decodes one workflow file.
func ParseWorkflow(data []byte) (*WorkflowDefinition, error) {
	var def WorkflowDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("malformed JSON: %v", err)}
	}
	return &def, nil
}

// Validate checks the structural requirements for deployment. Hard failures
// are returned as a *ValidationError; soft findings are returned as warnings.
func (w *WorkflowDefinition) Validate() (warnings []string, err error) {
	if strings.TrimSpace(w.Name) == "" {
		return nil, &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if len(w.Nodes) == 0 {
		return nil, &ValidationError{Field: "nodes", Reason: "must contain at least one node"}
	}
	for i, n := range w.Nodes {
		if strings.TrimSpace(n.Type) == "" {
			return nil, &ValidationError{Field: fmt.Sprintf("nodes[%d].type", i), Reason: "must not be empty"}
		}
	}
	if !w.HasTrigger() {
		warnings = append(warnings, "no trigger node found; workflow can only be started manually")
	}
	return warnings, nil
}

// HasTrigger reports whether any node looks like a trigger: a webhook, a
// cron/schedule node or any type ending in "Trigger".
func (w *WorkflowDefinition) HasTrigger() bool {
	for _, n := range w.Nodes {
		if IsTriggerType(n.Type) {
			return true
		}
	}
	return false
}

// IsTriggerType reports whether a node type starts a workflow.
func IsTriggerType(nodeType string) bool {
	t := strings.ToLower(nodeType)
	return strings.Contains(t, "webhook") || strings.Contains(t, "trigger") || strings.Contains(t, "cron")
}
