package cloud

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/lnashier/viper"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/telcorain/cmlrain/cmlrainutil"
)

// BuildJobSpec builds a JobSpec for a distributed "cmlrain run" invocation by
// walking the named subcommand's flags and reading each one's current
// value out of config, the same config a local run would use. name is
// the user-chosen job name, cmdArgs is the subcommand path (e.g. "run"),
// and memoryGB is the required amount of RAM for the job's pod.
// link_set is staged into the job's FileData since it must travel with
// the job rather than be read off the dispatching machine's disk.
func BuildJobSpec(root *cobra.Command, config *viper.Viper, name string, cmdArgs []string, memoryGB int32) (*JobSpec, error) {
	js := &JobSpec{
		Version:  cmlrainutil.Version,
		Name:     name,
		Cmd:      append([]string{"cmlrain"}, cmdArgs...),
		MemoryGB: memoryGB,
		FileData: make(map[string][]byte),
	}

	execCmd, _, err := root.Find(cmdArgs)
	if err != nil {
		return nil, err
	}
	flags := execCmd.InheritedFlags()
	flags.AddFlagSet(execCmd.LocalFlags())

	var visitErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if visitErr != nil {
			return
		}
		v := config.Get(f.Name)
		if v == nil || f.Name == "config" {
			return
		}
		val, err := cast.ToStringE(v)
		if err != nil {
			visitErr = fmt.Errorf("cloud: flag %q: %w", f.Name, err)
			return
		}

		if f.Name == "link_set" {
			staged, err := localFileToStaged(val, js)
			if err != nil {
				visitErr = err
				return
			}
			val = staged
		}

		if val != "false" {
			if val == "true" {
				js.Args = append(js.Args, fmt.Sprintf("--%s", f.Name), "true")
			} else {
				js.Args = append(js.Args, fmt.Sprintf("--%s", f.Name), val)
			}
		}
	})
	if visitErr != nil {
		return nil, visitErr
	}
	return js, nil
}

// localFileToStaged reads filePath's contents into js.FileData under its
// base name and returns that name, the path the staged copy will be
// written to inside the job's staging directory.
func localFileToStaged(filePath string, js *JobSpec) (string, error) {
	if filePath == "" {
		return filePath, nil
	}
	filePath = os.ExpandEnv(filePath)
	name := strings.TrimPrefix(filePath, "/")
	name = strings.ReplaceAll(name, "/", "_")

	var dst strings.Builder
	src, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("cloud: opening input file: %v", err)
	}
	defer src.Close()
	if _, err := io.Copy(&dst, src); err != nil {
		return "", err
	}
	js.FileData[name] = []byte(dst.String())
	return name, nil
}
