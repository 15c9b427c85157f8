package validator

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/buildmend/mend/internal/source"
)

func shCommand(script string) Command {
	return Command{Cmd: "sh", Args: []string{"-c", script}}
}

func TestValidateSuccess(t *testing.T) {
	v := NewCommandValidator(&Config{
		Build:   shCommand("cat hello.txt"),
		Timeout: 10 * time.Second,
	})
	tree := source.Tree{"hello.txt": "hi there\n"}

	res, err := v.Validate(context.Background(), tree)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !res.Success {
		t.Fatalf("Success = false, output: %s", res.RawOutput)
	}
	if !strings.Contains(res.RawOutput, "hi there") {
		t.Errorf("RawOutput = %q, want file contents", res.RawOutput)
	}
}

func TestValidateBuildFailureCapturesOutput(t *testing.T) {
	v := NewCommandValidator(&Config{
		Build:   shCommand("echo 'Error: something broke' >&2; exit 1"),
		Timeout: 10 * time.Second,
	})

	res, err := v.Validate(context.Background(), source.Tree{"a.txt": "x"})
	if err != nil {
		t.Fatalf("build failure should not be an error: %v", err)
	}
	if res.Success {
		t.Fatal("Success = true for failing command")
	}
	if !strings.Contains(res.RawOutput, "Error: something broke") {
		t.Errorf("RawOutput = %q, want captured stderr", res.RawOutput)
	}
	if len(res.Errors) == 0 {
		t.Error("Errors empty, want extracted error line")
	}
}

func TestValidateInstallRunsFirst(t *testing.T) {
	install := shCommand("echo installed > marker.txt")
	v := NewCommandValidator(&Config{
		Install: &install,
		Build:   shCommand("cat marker.txt"),
		Timeout: 10 * time.Second,
	})

	res, err := v.Validate(context.Background(), source.Tree{"a.txt": "x"})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !res.Success {
		t.Fatalf("Success = false, output: %s", res.RawOutput)
	}
	if !strings.Contains(res.RawOutput, "installed") {
		t.Errorf("RawOutput = %q, want marker written by install step", res.RawOutput)
	}
}

func TestValidateInstallFailureIsBuildFailure(t *testing.T) {
	install := shCommand("echo 'Error: bad manifest'; exit 1")
	v := NewCommandValidator(&Config{
		Install: &install,
		Build:   shCommand("true"),
		Timeout: 10 * time.Second,
	})

	res, err := v.Validate(context.Background(), source.Tree{"a.txt": "x"})
	if err != nil {
		t.Fatalf("install failure should not be an error: %v", err)
	}
	if res.Success {
		t.Fatal("Success = true after failed install")
	}
	if !strings.Contains(res.RawOutput, "bad manifest") {
		t.Errorf("RawOutput = %q", res.RawOutput)
	}
}

func TestValidateTimeoutIsBuildFailure(t *testing.T) {
	v := NewCommandValidator(&Config{
		Build:   shCommand("sleep 5"),
		Timeout: 100 * time.Millisecond,
	})

	res, err := v.Validate(context.Background(), source.Tree{"a.txt": "x"})
	if err != nil {
		t.Fatalf("timeout should be reported as build failure: %v", err)
	}
	if res.Success {
		t.Fatal("Success = true for timed-out command")
	}
}

func TestValidateMissingBinaryIsInfraError(t *testing.T) {
	v := NewCommandValidator(&Config{
		Build:   Command{Cmd: "no-such-binary-xyz"},
		Timeout: 10 * time.Second,
	})

	if _, err := v.Validate(context.Background(), source.Tree{"a.txt": "x"}); err == nil {
		t.Fatal("expected infrastructure error for missing binary")
	}
}

func TestValidateWritesNestedTree(t *testing.T) {
	v := NewCommandValidator(&Config{
		Build:   shCommand("cat src/app/page.tsx"),
		Timeout: 10 * time.Second,
	})
	tree := source.Tree{"src/app/page.tsx": "export default function Page() {}\n"}

	res, err := v.Validate(context.Background(), tree)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !res.Success {
		t.Fatalf("Success = false, output: %s", res.RawOutput)
	}
}
