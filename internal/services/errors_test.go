package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"markad/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "pass1", "decode", "ffmpeg exited", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"pass1", "decode", "ffmpeg exited"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestRunStatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, "completed"},
		{"validation", services.Wrap(services.ErrValidation, "config", "load", "invalid", nil), "review"},
		{"transient", services.Wrap(services.ErrTransient, "pass2", "seek", "seek failed", errors.New("io")), "failed"},
		{"canceled", fmt.Errorf("pass1: %w", context.Canceled), "aborted"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.RunStatus(tc.err); got != tc.want {
				t.Fatalf("RunStatus = %q, want %q", got, tc.want)
			}
		})
	}
}
