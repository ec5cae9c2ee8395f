// Package testutil provides shared fixtures for ozy's tests.
//
// Key components:
//   - Env: an isolated HOME with the managed layout and config writers
//   - FileServer: an httptest server serving canned bodies by path
//   - AssertErrorCode: checks the structured code anywhere in an error chain
//
// Tests that need real processes or flock use the real filesystem under
// t.TempDir; nothing here touches the invoking user's home.
package testutil
