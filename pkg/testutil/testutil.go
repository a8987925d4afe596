// Package testutil provides shared test helpers for vulntracker:
// a fake Qualys API server, fault injection and panic assertions.
package testutil

import (
	"errors"
	"testing"
)

// ErrFault is the sentinel error returned by fault injection helpers.
var ErrFault = errors.New("injected fault")

// AssertNoPanic calls fn and fails the test if it panics.
func AssertNoPanic(t testing.TB, name string, fn func()) {
	t.Helper()
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("%s: unexpected panic: %v", name, r)
		}
	}()
	fn()
}
