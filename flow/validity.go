package flow

import (
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// ConnValidType is the result of a connection validity test between two node
// ports. It is the stable vocabulary external callers (editors, tests) must
// handle; connection requests never fail any other way.
type ConnValidType int

const (
	// ConnValid marks a legal connection request.
	ConnValid ConnValidType = iota
	// ConnSameNode rejects connecting a node to itself.
	ConnSameNode
	// ConnSameIO rejects two inputs or two outputs.
	ConnSameIO
	// ConnIOMismatch rejects a request with the directions swapped.
	ConnIOMismatch
	// ConnDiffAlgType rejects mixing data and exec ports.
	ConnDiffAlgType
	// ConnDataMismatch rejects a data connection whose declared types are
	// not accepted by the flow's type checker.
	ConnDataMismatch
	// ConnInputTaken rejects connecting to an input that already has an
	// incoming connection.
	ConnInputTaken
	// ConnAlreadyConnected marks a redundant connect request.
	ConnAlreadyConnected
	// ConnAlreadyDisconnected marks a redundant disconnect request.
	ConnAlreadyDisconnected
)

func (v ConnValidType) String() string {
	switch v {
	case ConnValid:
		return "VALID"
	case ConnSameNode:
		return "SAME_NODE"
	case ConnSameIO:
		return "SAME_IO"
	case ConnIOMismatch:
		return "IO_MISMATCH"
	case ConnDiffAlgType:
		return "DIFF_ALG_TYPE"
	case ConnDataMismatch:
		return "DATA_MISMATCH"
	case ConnInputTaken:
		return "INPUT_TAKEN"
	case ConnAlreadyConnected:
		return "ALREADY_CONNECTED"
	case ConnAlreadyDisconnected:
		return "ALREADY_DISCONNECTED"
	}
	return "UNKNOWN"
}

// TypeChecker decides whether a value of the declared output type is
// acceptable at an input declaring the given type. Flows are created with
// DefaultTypeChecker; an external type registry may inject its own.
type TypeChecker func(out, in cty.Type) bool

// DefaultTypeChecker accepts undeclared types on either side and otherwise
// requires that cty knows a conversion from the output's type to the
// input's.
func DefaultTypeChecker(out, in cty.Type) bool {
	if in == cty.NilType || out == cty.NilType {
		return true
	}
	if out.Equals(in) {
		return true
	}
	return convert.GetConversion(out, in) != nil
}

// checkConn runs the structural validity checks shared by every connect and
// disconnect request. Occupancy checks (INPUT_TAKEN, ALREADY_*) are layered
// on top by the flow, which owns the adjacency.
func checkConn(out, in *Port, check TypeChecker) ConnValidType {
	if out.node == in.node {
		return ConnSameNode
	}
	if out.dir == in.dir {
		return ConnSameIO
	}
	if out.dir != DirOut {
		return ConnIOMismatch
	}
	if out.kind != in.kind {
		return ConnDiffAlgType
	}
	if out.kind == KindData && !check(out.typ, in.typ) {
		return ConnDataMismatch
	}
	return ConnValid
}
