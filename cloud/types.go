package cloud

// Status describes where a dispatched job is in its lifecycle.
type Status string

const (
	StatusMissing  Status = "missing"
	StatusWaiting  Status = "waiting"
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

// JobName identifies a previously dispatched job.
type JobName struct {
	Version string
	Name    string
}

// JobSpec describes one distributed "cmlrain run" invocation.
type JobSpec struct {
	Version  string
	Name     string
	Cmd      []string
	Args     []string
	MemoryGB int32

	// FileData holds the contents of any local files referenced by Args
	// (currently just the link-sets file), keyed by the staged file name
	// written under the job's staging directory.
	FileData map[string][]byte
}

// JobStatus reports the current state of a dispatched job.
type JobStatus struct {
	Status         Status
	Message        string
	StartTime      int64
	CompletionTime int64
}

// JobOutput holds the rendered frame files produced by a completed job.
type JobOutput struct {
	Files map[string][]byte
}
