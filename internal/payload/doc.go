// Package payload builds the canonical run submission document from
// user-supplied configuration: it merges named override fields over a raw
// JSON mapping, renders template placeholders through an injected rendering
// function, and string-coerces every scalar leaf into the wire form the
// remote runs API expects. All validation is eager so that configuration
// mistakes fail before any remote call is made.
package payload
