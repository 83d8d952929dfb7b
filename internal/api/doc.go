// Package api exposes the card and user operations over HTTP. Handlers decode
// and validate requests, call the services, and translate service errors into
// JSON error bodies with a fixed status per error kind.
package api
