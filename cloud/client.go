// Package cloud dispatches historic cmlrain calculations as Kubernetes
// batch Jobs, for farming a large backfill out across a cluster instead
// of running it serially on one machine.
package cloud

import (
	"context"
	"fmt"
	"strings"

	batch "k8s.io/api/batch/v1"
	core "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	meta "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	batchclient "k8s.io/client-go/kubernetes/typed/batch/v1"

	"github.com/telcorain/cmlrain/cmlrainutil"
)

type contextKey string

const userContextKey contextKey = "user"

// Client is a Kubernetes client that farms out "cmlrain run" historic
// calculations as batch Jobs, one per requested window. Job inputs and
// outputs live on a volume shared with every job pod (StagingDir,
// OutputsWeb, OutputsRaw) rather than in an external blob store: the
// realtime scheduler already treats those as plain local directories,
// so the distributed path reuses the same layout instead of adding a
// multi-provider object-storage dependency.
type Client struct {
	kubernetes.Interface
	jobControl batchclient.JobInterface

	StagingDir string
	OutputsWeb string
	OutputsRaw string

	// Image holds the container image to run. Default "telcorain/cmlrain:latest".
	Image string

	// Volumes are mounted read-only in every job pod at /data/<name>,
	// typically the same host path or PVC backing StagingDir/OutputsWeb/OutputsRaw.
	Volumes []core.Volume
}

// NewClient creates a Kubernetes client dispatching cmlrain run jobs into
// the "cmlrain-distributed" namespace.
func NewClient(k kubernetes.Interface, stagingDir, outputsWeb, outputsRaw string) (*Client, error) {
	jobControl := k.BatchV1().Jobs("cmlrain-distributed")
	return &Client{
		Interface:  k,
		jobControl: jobControl,
		StagingDir: stagingDir,
		OutputsWeb: outputsWeb,
		OutputsRaw: outputsRaw,
		Image:      "telcorain/cmlrain:latest",
	}, nil
}

// RunJob creates (and queues) a Kubernetes job running the given job
// spec. A job already running or complete is left alone; a job missing
// or previously failed is (re)created.
func (c *Client) RunJob(ctx context.Context, job *JobSpec) (*JobStatus, error) {
	if job.Version != cmlrainutil.Version {
		return nil, fmt.Errorf("cloud: incorrect cmlrain version: %s != %s", job.Version, cmlrainutil.Version)
	}

	status, err := c.Status(ctx, &JobName{Name: job.Name, Version: job.Version})
	if status.Status != StatusMissing && err != nil {
		return nil, err
	}
	if status.Status != StatusFailed && status.Status != StatusMissing {
		return status, nil
	}
	if status.Status != StatusMissing {
		if _, err := c.Delete(ctx, &JobName{Name: job.Name, Version: job.Version}); err != nil {
			return nil, err
		}
	}

	user, err := getUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.stageInputs(job, user); err != nil {
		return nil, err
	}

	k8sJob := createJob(userJobName(user, job.Name), job.Cmd, job.Args, c.Image, core.ResourceList{
		core.ResourceMemory: resource.MustParse(fmt.Sprintf("%dGi", job.MemoryGB)),
	}, c.Volumes)
	if _, err := c.jobControl.Create(k8sJob); err != nil {
		return nil, err
	}
	return c.Status(ctx, &JobName{Name: job.Name, Version: job.Version})
}

// Delete deletes the given job and its staged inputs.
func (c *Client) Delete(ctx context.Context, job *JobName) (*JobName, error) {
	user, err := getUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.deleteStagingDir(user, job.Name); err != nil {
		return nil, err
	}
	p := meta.DeletePropagationForeground
	return job, c.jobControl.Delete(userJobName(user, job.Name), &meta.DeleteOptions{
		PropagationPolicy: &p,
	})
}

func (c *Client) getk8sJob(ctx context.Context, job *JobName) (*batch.Job, error) {
	if job.Version != cmlrainutil.Version {
		return nil, fmt.Errorf("cloud: incorrect cmlrain version: %s != %s", job.Version, cmlrainutil.Version)
	}
	user, err := getUser(ctx)
	if err != nil {
		return nil, err
	}
	jobName := userJobName(user, job.Name)
	jobList, err := c.jobControl.List(meta.ListOptions{})
	if err != nil {
		return nil, err
	}
	for i := range jobList.Items {
		if jobList.Items[i].GetName() == jobName {
			return &jobList.Items[i], nil
		}
	}
	return nil, fmt.Errorf("cloud: cannot find job %s", jobName)
}

func getUser(ctx context.Context) (string, error) {
	u, ok := ctx.Value(userContextKey).(string)
	if !ok {
		return "", fmt.Errorf("cloud: invalid user in context")
	}
	return u, nil
}

func userJobName(user, name string) string {
	return strings.Replace(user, "_", "-", -1) + "-" + strings.Replace(name, "_", "-", -1)
}

// Status returns the status of the given job, checking the output
// directories for completeness once the Kubernetes job itself reports
// complete.
func (c *Client) Status(ctx context.Context, job *JobName) (*JobStatus, error) {
	s := new(JobStatus)
	k8sJob, err := c.getk8sJob(ctx, job)
	if err != nil {
		return &JobStatus{Status: StatusMissing, Message: err.Error()}, nil
	}
	for i, cond := range k8sJob.Status.Conditions {
		if i != len(k8sJob.Status.Conditions)-1 {
			continue
		}
		if cond.Type == batch.JobComplete && cond.Status == core.ConditionTrue {
			s.Status = StatusComplete
			s.StartTime = k8sJob.Status.StartTime.Time.Unix()
			s.CompletionTime = k8sJob.Status.CompletionTime.Time.Unix()
			if err := c.checkOutputs(); err != nil {
				s.Status = StatusFailed
				s.Message = fmt.Sprintf("job completed but the following error occurred when checking outputs: %s", err)
				return s, nil
			}
		} else if cond.Type == batch.JobFailed && cond.Status == core.ConditionTrue {
			s.Status = StatusFailed
			s.Message = cond.Message
		}
	}
	if len(k8sJob.Status.Conditions) == 0 {
		if k8sJob.Status.Active > 0 {
			s.Status = StatusRunning
			s.StartTime = k8sJob.Status.StartTime.Time.Unix()
		} else {
			s.Status = StatusWaiting
		}
	}
	return s, nil
}

// createJob builds a Kubernetes job specification running the given
// command and arguments on the given container image.
func createJob(name string, command, args []string, image string, resources core.ResourceList, volumes []core.Volume) *batch.Job {
	volumeMounts := make([]core.VolumeMount, len(volumes))
	for i, v := range volumes {
		volumeMounts[i] = core.VolumeMount{
			Name:      v.Name,
			ReadOnly:  true,
			MountPath: "/data/" + v.Name,
		}
	}

	return &batch.Job{
		TypeMeta: meta.TypeMeta{Kind: "Job", APIVersion: "batch/v1"},
		ObjectMeta: meta.ObjectMeta{
			Name: name,
		},
		Spec: batch.JobSpec{
			Template: core.PodTemplateSpec{
				ObjectMeta: meta.ObjectMeta{
					Name:   name + "_pod",
					Labels: map[string]string{"app": "cmlrain-distributed"},
				},
				Spec: core.PodSpec{
					Containers: []core.Container{
						{
							Name:    "cmlrain-container",
							Image:   image,
							Command: command,
							Args:    args,
							Resources: core.ResourceRequirements{
								Requests: resources,
							},
							VolumeMounts: volumeMounts,
						},
					},
					Volumes:       volumes,
					RestartPolicy: core.RestartPolicyOnFailure,
				},
			},
		},
	}
}
