package syncer

import (
	"github.com/pagopa/pn-mandate/internal/fingerprint"
)

// State is a step of a run.
type State string

const (
	StateStart         State = "START"
	StateFetching      State = "FETCHING"
	StateComparing     State = "COMPARING"
	StateUnchangedDone State = "UNCHANGED_DONE"
	StatePropagating   State = "PROPAGATING"
	StateDone          State = "DONE"
	StateError         State = "ERROR"
)

// Status is the result of a successful run.
type Status string

const (
	// StatusNotModified means the artifact matched the recorded fingerprint.
	StatusNotModified Status = "NOT_MODIFIED"
	// StatusSuccess means a new version was propagated.
	StatusSuccess Status = "SUCCESS"
)

// Outcome describes a successful run.
type Outcome struct {
	Status      Status                  `json:"status"`
	Fingerprint fingerprint.Fingerprint `json:"fingerprint"`
	FileSize    int64                   `json:"fileSize"`

	// Set only when the dependent service was notified.
	ServiceARN   string `json:"serviceArn,omitempty"`
	DeploymentID string `json:"deploymentId,omitempty"`
}

// RefreshResult describes a refresh triggered without a sync.
type RefreshResult struct {
	Cluster      string `json:"cluster,omitempty"`
	Service      string `json:"service"`
	ServiceARN   string `json:"serviceArn,omitempty"`
	DeploymentID string `json:"deploymentId,omitempty"`
	Status       string `json:"status,omitempty"`
}
