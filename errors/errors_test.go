package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	t.Run("should include phase kind method and path", func(t *testing.T) {
		err := New(PhaseConvert, KindUnserializable).
			Method("track").
			Path("properties", "cart").
			Detail("unsupported type %s", "chan int").
			Build()

		want := "[convert] unserializable in track at properties.cart: unsupported type chan int"
		if err.Error() != want {
			t.Fatalf("expected %q, got %q", want, err.Error())
		}
	})

	t.Run("should include the cause", func(t *testing.T) {
		err := New(PhaseDispatch, KindPlatform).Cause(errors.New("pipe closed")).Build()
		if !strings.Contains(err.Error(), "(caused by: pipe closed)") {
			t.Fatalf("expected cause in message, got %q", err.Error())
		}
		if errors.Unwrap(err).Error() != "pipe closed" {
			t.Fatal("expected Unwrap to return the cause")
		}
	})
}

func TestError_Is(t *testing.T) {
	err := InvalidInput("identify", "distinctId")

	if !errors.Is(err, ErrInvalidInput) {
		t.Fatal("expected kind sentinel to match")
	}
	if errors.Is(err, ErrUnimplemented) {
		t.Fatal("expected different kind not to match")
	}
	if errors.Is(err, &Error{Phase: PhaseDecode, Kind: KindInvalidInput}) {
		t.Fatal("expected phase mismatch not to match")
	}

	wrapped := fmt.Errorf("dispatch: %w", err)
	if !errors.Is(wrapped, ErrInvalidInput) {
		t.Fatal("expected wrapped error to match")
	}
	if KindOf(wrapped) != KindInvalidInput {
		t.Fatalf("expected invalid_input, got %q", KindOf(wrapped))
	}
	if KindOf(errors.New("plain")) != "" {
		t.Fatal("expected empty kind for plain errors")
	}
}

func TestWithPath(t *testing.T) {
	inner := New(PhaseEncode, KindUnserializable).Path("b").Build()
	outer := WithPath(inner, "a")

	var e *Error
	if !errors.As(outer, &e) {
		t.Fatal("expected *Error")
	}
	if strings.Join(e.Path, ".") != "a.b" {
		t.Fatalf("expected path a.b, got %v", e.Path)
	}
	if strings.Join(inner.Path, ".") != "b" {
		t.Fatal("expected original error to stay untouched")
	}

	plain := errors.New("plain")
	if WithPath(plain, "a") != plain {
		t.Fatal("expected non-structured errors to pass through")
	}
}

func TestMalformed(t *testing.T) {
	err := Malformed(12, "unknown tag %d", 200)
	if err.Kind != KindMalformedPayload || err.Phase != PhaseDecode {
		t.Fatalf("unexpected classification: %v", err)
	}
	if err.Detail != "offset 12: unknown tag 200" {
		t.Fatalf("unexpected detail %q", err.Detail)
	}
}
