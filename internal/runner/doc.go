// Package runner launches operator executions asynchronously for the HTTP
// service. It tracks each execution's status, forwards lifecycle updates to
// subscribers through the state broker, and routes kill requests to the
// owning operator.
package runner
