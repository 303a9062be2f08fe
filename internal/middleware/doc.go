// Package middleware provides the ops server's HTTP middleware. Observe gives
// each request an id, logs it and records Prometheus metrics by route
// template. Compression gzips larger JSON bodies.
package middleware
