// Package httputil carries the JSON request/response helpers shared by all
// API handlers, so status codes, error payloads, and decode failures look the
// same on every endpoint.
package httputil
