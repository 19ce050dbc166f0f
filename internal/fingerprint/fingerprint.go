// Package fingerprint implements the Fingerprint Engine: it derives a
// stable content key for a Ready task from its callable identity, its
// argument tree with file-stat substitution applied, its declared outputs,
// and its ignore-paths.
//
// The length-prefixed field writer is ported verbatim (8-byte big-endian
// length prefix per field, so no field's bytes can be confused with a
// boundary) from the hashing idiom in
// samgonzalezalberto-script-weaver/internal/core/hasher.go and
// samgonzalezalberto-script-weaver/internal/dag/taskdef_hash.go.
package fingerprint

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"reflect"
	"sort"
	"strings"

	"taskgraph/internal/probe"
)

// Digest is a hex-encoded sha256 fingerprint.
type Digest string

// Spec carries everything the engine needs to compute a Digest for one Ready
// task.
type Spec struct {
	CallableIdentity string
	Args             []any
	Kwargs           map[string]any
	DeclaredOutputs  []string
	IgnorePaths      []string
}

// Compute derives the Digest for spec. It must only be called once the
// owning task has transitioned to Ready (invariant I3): calling it earlier
// risks hashing inputs that upstream dependencies have not yet produced.
func Compute(spec Spec) Digest {
	h := sha256.New()
	wf := fieldWriter(h)

	wf([]byte(spec.CallableIdentity))

	ignore := make(map[string]struct{}, len(spec.IgnorePaths))
	for _, p := range spec.IgnorePaths {
		ignore[p] = struct{}{}
	}

	encodeValue(h, spec.Args, ignore)
	encodeValue(h, spec.Kwargs, ignore)

	outs := append([]string(nil), spec.DeclaredOutputs...)
	sort.Strings(outs)
	wf([]byte(strings.Join(outs, "\x00")))

	ign := append([]string(nil), spec.IgnorePaths...)
	sort.Strings(ign)
	wf([]byte(strings.Join(ign, "\x00")))

	return Digest(hex.EncodeToString(h.Sum(nil)))
}

// OpIdentity computes the stable identity for an encapsulated op: its
// reported type name plus a digest of a canonical encoding of its
// constructor-argument snapshot, so that two instances of the same type
// constructed with the same arguments always collide and two constructions
// with different arguments never do.
func OpIdentity(typeName string, ctorArgs []any) string {
	h := sha256.New()
	encodeValue(h, ctorArgs, nil)
	return typeName + "@" + hex.EncodeToString(h.Sum(nil))
}

func fieldWriter(h hash.Hash) func([]byte) {
	return func(data []byte) {
		var lengthBytes [8]byte
		binary.BigEndian.PutUint64(lengthBytes[:], uint64(len(data)))
		h.Write(lengthBytes[:])
		h.Write(data)
	}
}

// encodeValue recursively encodes v into h. Every existing-path string leaf
// (per the File Stat Probe, ignore-paths honored, directories excluded) is
// substituted with its (path, size, mtime) tuple; every other node
// contributes its Go kind tag and value, so two trees differing only in a
// non-path scalar never collide.
func encodeValue(h hash.Hash, v any, ignore map[string]struct{}) {
	wf := fieldWriter(h)
	rv := reflect.ValueOf(v)
	encodeReflect(wf, rv, ignore)
}

func encodeReflect(wf func([]byte), v reflect.Value, ignore map[string]struct{}) {
	if !v.IsValid() {
		wf([]byte("nil"))
		return
	}
	switch v.Kind() {
	case reflect.Interface, reflect.Ptr:
		if v.IsNil() {
			wf([]byte("nil"))
			return
		}
		encodeReflect(wf, v.Elem(), ignore)
	case reflect.Map:
		wf([]byte("map"))
		keys := v.MapKeys()
		sort.Slice(keys, func(i, j int) bool {
			return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
		})
		for _, k := range keys {
			wf([]byte(fmt.Sprint(k.Interface())))
			encodeReflect(wf, v.MapIndex(k), ignore)
		}
	case reflect.Slice, reflect.Array:
		wf([]byte("seq"))
		for i := 0; i < v.Len(); i++ {
			encodeReflect(wf, v.Index(i), ignore)
		}
	case reflect.String:
		s := v.String()
		if ps, ok := probe.StatPath(s, ignore, false); ok {
			wf([]byte(fmt.Sprintf("path:%s\x00%d\x00%d", ps.Path, ps.Size, ps.ModTime)))
			return
		}
		wf([]byte("str:" + s))
	default:
		wf([]byte(fmt.Sprintf("scalar:%s:%v", v.Kind(), v.Interface())))
	}
}
