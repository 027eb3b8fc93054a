package models

import "time"

// DeploymentRequest is the user-supplied intent to provision cloud resources.
type DeploymentRequest struct {
	UserID       string           `json:"userId"`
	CreateS3     bool             `json:"createS3"`
	CreateRDS    bool             `json:"createRDS"`
	CreateEKS    bool             `json:"createEKS"`
	S3BucketName string           `json:"s3BucketName,omitempty"`
	Databases    []DatabaseConfig `json:"databases,omitempty"`
}

// DatabaseConfig describes one requested relational database. The workflow
// only consumes the first entry.
type DatabaseConfig struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// ResourceFlags records which resource kinds a deployment asked for.
type ResourceFlags struct {
	CreateS3  bool `json:"createS3"`
	CreateRDS bool `json:"createRDS"`
	CreateEKS bool `json:"createEKS"`
}

// Flags extracts the resource-selection flags from the request.
func (r DeploymentRequest) Flags() ResourceFlags {
	return ResourceFlags{
		CreateS3:  r.CreateS3,
		CreateRDS: r.CreateRDS,
		CreateEKS: r.CreateEKS,
	}
}

// RunHandle identifies one remote workflow execution. It is created once by
// the dispatcher after run-id discovery and never mutated afterwards.
type RunHandle struct {
	RunID     string        `json:"runId"`
	UserID    string        `json:"userId"`
	Requested ResourceFlags `json:"requested"`
}

// Lifecycle represents the coarse state of a workflow run.
type Lifecycle string

const (
	LifecycleQueued    Lifecycle = "queued"
	LifecycleRunning   Lifecycle = "running"
	LifecycleCompleted Lifecycle = "completed"
	LifecycleUnknown   Lifecycle = "unknown"
)

// Conclusion is the terminal outcome of a completed run. Empty until the run
// finishes.
type Conclusion string

const (
	ConclusionSuccess   Conclusion = "success"
	ConclusionFailure   Conclusion = "failure"
	ConclusionCancelled Conclusion = "cancelled"
	ConclusionTimedOut  Conclusion = "timed_out"
)

// RunStatus is the last-seen snapshot of remote run state.
type RunStatus struct {
	Lifecycle  Lifecycle  `json:"status"`
	Conclusion Conclusion `json:"conclusion,omitempty"`
	LogsURL    string     `json:"-"`
}

// Finished reports whether the run has reached its terminal lifecycle.
func (s RunStatus) Finished() bool {
	return s.Lifecycle == LifecycleCompleted
}

// RunSummary is one entry of the provider's recent-runs listing.
type RunSummary struct {
	RunID      string     `json:"run_id"`
	Lifecycle  Lifecycle  `json:"status"`
	Conclusion Conclusion `json:"conclusion,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// S3Outputs describes a provisioned object-storage bucket.
type S3Outputs struct {
	BucketName string `json:"bucketName"`
	BucketURL  string `json:"bucketUrl,omitempty"`
	Region     string `json:"region,omitempty"`
}

// RDSOutputs describes a provisioned database instance.
type RDSOutputs struct {
	InstanceEndpoint string `json:"instanceEndpoint"`
	DBName           string `json:"dbName"`
	Username         string `json:"username"`
	Region           string `json:"region,omitempty"`
}

// EKSOutputs describes a provisioned Kubernetes cluster.
type EKSOutputs struct {
	ClusterName     string `json:"clusterName"`
	ClusterEndpoint string `json:"clusterEndpoint,omitempty"`
	Region          string `json:"region,omitempty"`
}

// DeploymentOutputs is the resource-specific outputs payload extracted from a
// successful run's logs.
type DeploymentOutputs struct {
	S3  *S3Outputs  `json:"s3,omitempty"`
	RDS *RDSOutputs `json:"rds,omitempty"`
	EKS *EKSOutputs `json:"eks,omitempty"`
}

// Empty reports whether no resource outputs were found.
func (o DeploymentOutputs) Empty() bool {
	return o.S3 == nil && o.RDS == nil && o.EKS == nil
}
