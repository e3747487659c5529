package cloud

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// stageInputs writes job.FileData (currently at most the link-sets file)
// under the job's staging directory and rewrites any matching argument
// to the staged path, which is mounted read-only into the job's pod.
func (c *Client) stageInputs(job *JobSpec, user string) error {
	dir := filepath.Join(c.StagingDir, user, job.Name)
	if len(job.FileData) == 0 {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("cloud: staging job inputs: %v", err)
	}
	for fname, data := range job.FileData {
		staged := filepath.Join(dir, fname)
		if err := os.WriteFile(staged, data, 0644); err != nil {
			return fmt.Errorf("cloud: writing staged input %s: %v", staged, err)
		}
		for i, arg := range job.Args {
			if arg == fname {
				job.Args[i] = staged
			}
		}
	}
	return nil
}

func (c *Client) deleteStagingDir(user, name string) error {
	dir := filepath.Join(c.StagingDir, user, name)
	if dir == c.StagingDir || dir == "" {
		return nil
	}
	return os.RemoveAll(dir)
}

// checkOutputs verifies the shared outputs_web/outputs_raw directories
// hold at least one file, a coarse signal the job actually produced
// frames rather than exiting early with no work to do.
func (c *Client) checkOutputs() error {
	for _, dir := range []string{c.OutputsWeb, c.OutputsRaw} {
		if dir == "" {
			continue
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("reading output directory %s: %v", dir, err)
		}
		if len(entries) == 0 {
			return fmt.Errorf("output directory %s is empty", dir)
		}
	}
	return nil
}

// Output collects every file currently in the shared outputs_web
// directory, for a dispatching client that wants to fetch results
// without direct filesystem access to the job pod. The job argument is
// not used to filter the files.
func (c *Client) Output(ctx context.Context, job *JobName) (*JobOutput, error) {
	o := &JobOutput{Files: make(map[string][]byte)}
	entries, err := os.ReadDir(c.OutputsWeb)
	if err != nil {
		return nil, fmt.Errorf("cloud: reading outputs: %v", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(c.OutputsWeb, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("cloud: reading output file %s: %v", e.Name(), err)
		}
		o.Files[e.Name()] = data
	}
	return o, nil
}
