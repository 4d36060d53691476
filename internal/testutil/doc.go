// Package testutil holds helpers shared by the tests of packages that sit
// above document: quiet loggers, replicas with fixed ids, and log exchange
// with a convergence check.
package testutil
