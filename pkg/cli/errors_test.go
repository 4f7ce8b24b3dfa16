package cli

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

var errTest = errors.New("boom")

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"command", NewCommandError("lint", errTest), ExitFailure},
		{"config", NewConfigError("rulekit.yaml", errTest), ExitConfig},
		{"wrapped config", fmt.Errorf("serve: %w", NewConfigError("", errTest)), ExitConfig},
		{"plain", errTest, ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	if got := NewConfigError("a.yaml", errTest).Error(); got != "config error in a.yaml: boom" {
		t.Errorf("ConfigError = %q", got)
	}
	if got := NewConfigError("", errTest).Error(); got != "config error: boom" {
		t.Errorf("ConfigError = %q", got)
	}
	cmdErr := NewCommandError("eval", errTest)
	if cmdErr.Error() != "eval failed: boom" || !errors.Is(cmdErr, errTest) {
		t.Errorf("CommandError = %q", cmdErr.Error())
	}
}

func TestSetupSignalHandler(t *testing.T) {
	parent, cancelParent := context.WithCancel(context.Background())
	ctx, stop := SetupSignalHandler(parent)
	defer stop()

	select {
	case <-ctx.Done():
		t.Fatal("context cancelled before any signal")
	default:
	}

	cancelParent()
	<-ctx.Done()
}
