// Package testutil holds helpers shared by package tests: a log capturing
// slog handler and an in-memory license authority served over httptest.
//
// Packages whose own tests import testutil must not be imported from here.
package testutil
