package errors

import (
	stderrors "errors"
	"fmt"
	"io"
	"strings"
	"testing"
)

func TestSentinelMatchingThroughWrapping(t *testing.T) {
	err := fmt.Errorf("install mod: %w", NewAlreadyInstalledError("Foo.dll"))

	if !stderrors.Is(err, ErrAlreadyInstalled) {
		t.Fatalf("expected ErrAlreadyInstalled to match %v", err)
	}
	if stderrors.Is(err, ErrPathNotFound) {
		t.Fatal("ErrPathNotFound must not match an already-installed error")
	}
	if got := CodeOf(err); got != CodeAlreadyInstalled {
		t.Fatalf("CodeOf = %q, want %q", got, CodeAlreadyInstalled)
	}
}

func TestNetworkErrorUnwrapsCause(t *testing.T) {
	err := NewNetworkError("fetch catalog", io.ErrUnexpectedEOF)

	if !stderrors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatal("expected cause to be reachable through Unwrap")
	}
	if !err.Retryable {
		t.Fatal("network errors should be retryable by the caller")
	}
	if !strings.Contains(err.Error(), "fetch catalog") {
		t.Fatalf("unexpected message: %s", err.Error())
	}
}

func TestOnlyConfigCorruptIsRecoverable(t *testing.T) {
	if !IsRecoverable(NewConfigCorruptError("/x.yaml", io.EOF)) {
		t.Fatal("config corruption should be recoverable")
	}
	if IsRecoverable(NewFileSystemError("write", io.EOF)) {
		t.Fatal("filesystem errors are not recoverable")
	}
	if IsRecoverable(io.EOF) {
		t.Fatal("foreign errors are not recoverable")
	}
}

func TestFormatDetailedIncludesSuggestions(t *testing.T) {
	out := NewNotInstalledError("Silk", "/games/SpiderHeck").FormatDetailed()

	for _, want := range []string{"NOT_INSTALLED", "game_path", "entwine silk install"} {
		if !strings.Contains(out, want) {
			t.Errorf("FormatDetailed missing %q:\n%s", want, out)
		}
	}
}
