//go:build !ORT

package provider

import "github.com/knights-analytics/hugot"

// newHugotSession runs the model on hugot's pure Go backend.
func newHugotSession() (*hugot.Session, error) { return hugot.NewGoSession() }
