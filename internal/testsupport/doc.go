// Package testsupport holds shared helpers for package tests: per-test
// configurations, ledger fixtures and scripted session fakes.
package testsupport
