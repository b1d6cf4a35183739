package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := InvalidKittyID(100, 11)
	if !errors.Is(err, ErrInvalidKittyID) {
		t.Fatalf("expected InvalidKittyID to match sentinel")
	}
	if errors.Is(err, ErrNoPermission) {
		t.Fatalf("codes must not cross-match")
	}
	if err.Metadata["kitty_id"] != "11" || err.Metadata["owner"] != "100" {
		t.Fatalf("unexpected metadata %+v", err.Metadata)
	}

	wrapped := fmt.Errorf("transfer: %w", NoPermission(101, 0))
	if !errors.Is(wrapped, ErrNoPermission) {
		t.Fatalf("expected wrapped no-permission to match")
	}
	if CodeOf(wrapped) != CodeNoPermission {
		t.Fatalf("expected code %s, got %s", CodeNoPermission, CodeOf(wrapped))
	}
}

func TestCodeOfUnknown(t *testing.T) {
	if got := CodeOf(errors.New("plain")); got != CodeUnknown {
		t.Fatalf("expected unknown code, got %s", got)
	}
	if got := CodeOf(nil); got != CodeUnknown {
		t.Fatalf("expected unknown code for nil, got %s", got)
	}
}
