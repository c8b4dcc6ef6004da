package models

import "encoding/json"

// TypeProblemReport is the RFC 7807 structured problem document some servers
// attach to failed requests.
const TypeProblemReport = "application/api-problem+json"

// Problem is a structured problem report returned by a catalog server.
type Problem struct {
	Type   string `json:"type,omitempty"`
	Title  string `json:"title,omitempty"`
	Detail string `json:"detail,omitempty"`
	Status int    `json:"status,omitempty"`
}

// ParseProblem decodes a problem report, returning nil if the body is not a
// usable problem document.
func ParseProblem(data []byte) *Problem {
	var p Problem
	if err := json.Unmarshal(data, &p); err != nil {
		return nil
	}
	if p.Type == "" && p.Title == "" && p.Detail == "" {
		return nil
	}
	return &p
}
