// Package jsonapi encodes API error bodies as JSON:API error documents
// (https://jsonapi.org/format/#errors) and timestamps as RFC 3339 strings.
package jsonapi

import "strconv"

// Document is the top-level body of an error response.
type Document struct {
	Errors []Error `json:"errors"`
}

// Error is a single JSON:API error object. ID carries the request's
// correlation ID so a client can quote it back.
type Error struct {
	ID     string `json:"id,omitempty"`
	Status string `json:"status,omitempty"`
	Title  string `json:"title,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// NewError builds an error object for an HTTP status code.
func NewError(status int, title, detail string) Error {
	return Error{Status: strconv.Itoa(status), Title: title, Detail: detail}
}

// NewErrorResponse wraps errs in a document.
func NewErrorResponse(errs ...Error) *Document {
	return &Document{Errors: errs}
}
