package messaging

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorKinds(t *testing.T) {
	t.Parallel()

	verr := ValidationError{Op: "op", Field: "body", Msg: "required"}
	if !IsValidation(verr) || IsNotFound(verr) || IsStore(verr) {
		t.Fatalf("ValidationError kind mismatch")
	}

	nferr := NotFoundError{Op: "op", Resource: "conversation", ID: "c1"}
	if !IsNotFound(nferr) || IsValidation(nferr) || IsStore(nferr) {
		t.Fatalf("NotFoundError kind mismatch")
	}

	serr := StoreError{Op: "op", Err: errors.New("conn refused")}
	if !IsStore(serr) || IsValidation(serr) || IsNotFound(serr) {
		t.Fatalf("StoreError kind mismatch")
	}
}

func TestErrorKindsSurviveWrapping(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("handling request: %w", NotFoundError{Op: "op", Resource: "user", ID: "u1"})
	if !IsNotFound(wrapped) {
		t.Fatalf("wrapped NotFoundError not detected")
	}
}

func TestStoreErrorPreservesCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("deadline exceeded")
	serr := StoreError{Op: "store.CreateMessage", Err: cause}
	if !errors.Is(serr, cause) {
		t.Fatalf("StoreError must unwrap to its cause")
	}
}
