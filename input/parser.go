// Package input defines the Parser seam consumed by the core (spec.md §6
// "file-format parsing... out of scope"; §1 "The core consumes an
// executable image abstraction"): a Parser turns raw executable bytes into
// an image.Image, and a ParserRegistry picks one by sniffing a file's
// magic bytes. input/pe ships the one bit-exact implementation spec.md
// names; ELF is an interface-only stub (SPEC_FULL.md §7).
package input

import (
	"fmt"

	"github.com/Urethramancer/decompiler/image"
)

// Parser builds an Image from an executable file's raw bytes.
type Parser interface {
	// Name identifies the format this parser recognizes ("PE", "ELF").
	Name() string
	// Sniff reports whether data looks like this parser's format, checked
	// against a file's leading bytes before a full Parse attempt.
	Sniff(data []byte) bool
	// Parse builds an Image from data. Failure here is spec.md §7's
	// ParseError: "parser rejects input; surfaced to the caller;
	// decompilation aborts before any IR work."
	Parse(data []byte) (*image.Image, error)
}

// ParserRegistry selects a Parser for a file by sniffing its bytes,
// replacing a hypothetical global format-dispatch table with an explicit
// value (spec.md §9 "Global state").
type ParserRegistry struct {
	parsers []Parser
}

// NewParserRegistry constructs an empty registry.
func NewParserRegistry() *ParserRegistry {
	return &ParserRegistry{}
}

// Register adds p to the registry, returning the registry for chaining.
func (r *ParserRegistry) Register(p Parser) *ParserRegistry {
	r.parsers = append(r.parsers, p)
	return r
}

// Parse sniffs data against every registered parser in registration order
// and parses it with the first match.
func (r *ParserRegistry) Parse(data []byte) (*image.Image, error) {
	for _, p := range r.parsers {
		if p.Sniff(data) {
			return p.Parse(data)
		}
	}
	return nil, fmt.Errorf("input: no registered parser recognizes this file")
}
