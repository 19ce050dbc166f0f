package taskgraph

import (
	"context"
	"reflect"
	"runtime"

	"taskgraph/internal/fingerprint"
)

// Func is the signature every task callable implements. args and kwargs are
// exactly the tree the Fingerprint Engine walks: nested
// map[string]any / []any / scalars, possibly containing path strings.
type Func func(ctx context.Context, args []any, kwargs map[string]any) error

// EncapsulatedOp is implemented by a stateful callable whose identity must be
// derived from its type plus its constructor arguments rather than from a bare
// function pointer.
//
// Two instances of the same Go type constructed with equal ctorArgs must
// report the same OpIdentity; two instances with different ctorArgs do not
// collide. The identity is derived only from the reported name and ctorArgs,
// so two distinct types reporting the same name and equal ctorArgs share an
// identity.
type EncapsulatedOp interface {
	// Call runs the operation.
	Call(ctx context.Context, args []any, kwargs map[string]any) error
	// OpIdentity reports the stable type name and constructor-argument
	// snapshot used to compute the callable identity.
	OpIdentity() (name string, ctorArgs []any)
}

// callableIdentity resolves the stable name the Fingerprint Engine hashes
// for fn: the qualified function name for an ordinary Go
// function, or type-name-plus-ctor-args digest for an EncapsulatedOp.
func callableIdentity(fn Func, op EncapsulatedOp) string {
	if op != nil {
		name, ctorArgs := op.OpIdentity()
		return fingerprint.OpIdentity(name, ctorArgs)
	}
	if fn == nil {
		return "taskgraph.token"
	}
	return runtime.FuncForPC(reflect.ValueOf(fn).Pointer()).Name()
}

func callableInvoke(fn Func, op EncapsulatedOp) func(ctx context.Context, args []any, kwargs map[string]any) error {
	if op != nil {
		return op.Call
	}
	return fn
}
