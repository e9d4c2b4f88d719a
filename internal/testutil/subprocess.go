package testutil

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"testing"
)

// Result is the outcome of a child test process.
type Result struct {
	ExitCode int
	Output   string
}

// InChild reports whether the current process is the child started by
// RunInChild with the given environment variable.
func InChild(envVar string) bool {
	return os.Getenv(envVar) == "1"
}

// RunInChild re-executes the current test binary so that only the test
// named name runs, with envVar=1 set in its environment. Use it to check
// behavior that ends the process.
//
// Example:
//
//	func TestCrash(t *testing.T) {
//	    if testutil.InChild("APP_CRASHER") {
//	        crash()
//	        return
//	    }
//	    res := testutil.RunInChild(t, "TestCrash", "APP_CRASHER")
//	    require.Equal(t, 1, res.ExitCode)
//	}
func RunInChild(t *testing.T, name, envVar string, extraEnv ...string) Result {
	t.Helper()

	cmd := exec.Command(os.Args[0], "-test.run=^"+name+"$", "-test.count=1")
	cmd.Env = append(os.Environ(), envVar+"=1")
	cmd.Env = append(cmd.Env, extraEnv...)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	res := Result{Output: out.String()}
	if err == nil {
		return res
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("Failed to run child test %s: %v", name, err)
	}
	res.ExitCode = exitErr.ExitCode()
	return res
}
