package cloud

import (
	"fmt"
	"os/exec"
	"testing"

	batch "k8s.io/api/batch/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"
)

// NewFakeClient creates a client for testing. Jobs created through it run
// locally: the cmlrain binary must be on PATH for it to work.
func NewFakeClient(t *testing.T, checkConfig bool, stagingDir, outputsWeb, outputsRaw string) (*Client, error) {
	k8sClient := fake.NewSimpleClientset()
	k8sClient.Fake.PrependReactor("create", "jobs", fakeRun(t, checkConfig))
	return NewClient(k8sClient, stagingDir, outputsWeb, outputsRaw)
}

func fakeRun(t *testing.T, checkConfig bool) func(action k8stesting.Action) (handled bool, ret runtime.Object, err error) {
	return func(action k8stesting.Action) (handled bool, ret runtime.Object, err error) {
		job := action.(k8stesting.CreateAction).GetObject().(*batch.Job)
		cmd := job.Spec.Template.Spec.Containers[0].Command
		args := job.Spec.Template.Spec.Containers[0].Args
		for i := 0; i < len(args); i += 2 {
			cmd = append(cmd, fmt.Sprintf("%s=%s", args[i], args[i+1]))
		}
		if checkConfig {
			wantPrefix := []string{"cmlrain", "run"}
			for i, a := range wantPrefix {
				if i >= len(cmd) || cmd[i] != a {
					t.Errorf("command element %d: %q != %q", i, cmd[i], a)
				}
			}
		}

		xcmd := exec.Command(cmd[0], cmd[1:]...)
		o, err := xcmd.CombinedOutput()
		if err != nil {
			t.Error(err)
		}
		t.Logf("%s", o)
		return false, job, nil
	}
}
