package models

import "fmt"

// CodeKind identifies the entity family a human-readable code belongs to
type CodeKind string

const (
	CodeRequest       CodeKind = "request"
	CodeAuthorization CodeKind = "authorization"
	CodeEscalation    CodeKind = "escalation"
	CodeExtension     CodeKind = "extension"
	CodeDiscrepancy   CodeKind = "discrepancy"
)

// Prefix returns the human-readable code prefix for the kind
func (k CodeKind) Prefix() string {
	switch k {
	case CodeRequest:
		return "SOL"
	case CodeAuthorization:
		return "AUT"
	case CodeEscalation:
		return "ESC"
	case CodeExtension:
		return "EXT"
	case CodeDiscrepancy:
		return "DISC"
	}
	return ""
}

// Width returns the zero-padded width of the sequence part
func (k CodeKind) Width() int {
	if k == CodeExtension {
		return 4
	}
	return 3
}

// FormatCode renders a code like SOL-2024-007 for the kind, year and sequence
func FormatCode(kind CodeKind, year, seq int) string {
	return fmt.Sprintf("%s-%d-%0*d", kind.Prefix(), year, kind.Width(), seq)
}
