package transport

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorWrapping(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewError(KindNetwork, "local server", fmt.Errorf("fetch: %w", cause))

	if !errors.Is(err, cause) {
		t.Fatalf("cause lost through wrapping")
	}
	if got := err.Error(); got != "local server: fetch: connection reset" {
		t.Fatalf("message = %q", got)
	}
}

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{Errorf(KindUnavailable, "radio", "not connected"), KindUnavailable},
		{Errorf(KindBadRequest, "local server", "rejected"), KindBadRequest},
		{Errorf(KindCodec, "radio", "bad frame"), KindCodec},
		{fmt.Errorf("outer: %w", Errorf(KindCodec, "radio", "bad frame")), KindCodec},
		// Unknown failures classify as network so the next tick retries.
		{errors.New("some raw failure"), KindNetwork},
	}
	for _, tc := range cases {
		if got := KindOf(tc.err); got != tc.want {
			t.Fatalf("KindOf(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestRetryable(t *testing.T) {
	if !Retryable(Errorf(KindNetwork, "local server", "status 503")) {
		t.Fatalf("network errors retry")
	}
	if !Retryable(Errorf(KindUnavailable, "radio", "not connected")) {
		t.Fatalf("unavailable retries on the next tick")
	}
	if Retryable(Errorf(KindBadRequest, "local server", "rejected")) {
		t.Fatalf("bad request must not retry")
	}
	if Retryable(Errorf(KindCodec, "radio", "bad frame")) {
		t.Fatalf("codec failures must not retry")
	}
}

func TestStatusStrings(t *testing.T) {
	want := map[Status]string{
		StatusOffline:     "offline",
		StatusLocalServer: "local_server",
		StatusRadio:       "radio",
		StatusError:       "error",
	}
	for status, name := range want {
		if status.String() != name {
			t.Fatalf("%d.String() = %q, want %q", status, status.String(), name)
		}
	}
}
