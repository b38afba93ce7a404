// Package compiler turns specification source into spec.Specification
// values.
//
// Two source forms are supported. The canonical text written by
// spec.Render is parsed by Parse, so a rendered specification (or a feed
// received from a peer) reads back into an equal value. CUE files carry
// named specifications under a top-level "specification" struct, either as
// canonical text or field by field; LoadDir discovers both kinds of file
// under a directory and checks every specification it finds.
package compiler
