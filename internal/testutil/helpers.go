package testutil

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"

	"github.com/rs/zerolog"
)

// NewTestRNG is a seeded source so random battles replay exactly.
func NewTestRNG(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

func NopLogger() zerolog.Logger {
	return zerolog.Nop()
}

// BufferLogger writes JSON lines into the returned buffer at debug level.
func BufferLogger() (zerolog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return zerolog.New(&buf).Level(zerolog.DebugLevel), &buf
}

// RequirePanicIs runs f and fails unless it panics with an error matching
// target. Grid invariant violations panic this way.
func RequirePanicIs(t *testing.T, target error, f func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		if r == nil {
			t.Fatalf("expected panic matching %v, got none", target)
		}
		err, ok := r.(error)
		if !ok {
			t.Fatalf("expected panic with an error, got %T: %v", r, r)
		}
		if !errors.Is(err, target) {
			t.Fatalf("panic %v does not match %v", err, target)
		}
	}()
	f()
}
