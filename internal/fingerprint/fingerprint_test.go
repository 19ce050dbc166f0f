package fingerprint

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCompute_OutputOrderDoesNotAffectDigest(t *testing.T) {
	s1 := Spec{CallableIdentity: "pkg.Fn", DeclaredOutputs: []string{"a.txt", "b.txt"}}
	s2 := Spec{CallableIdentity: "pkg.Fn", DeclaredOutputs: []string{"b.txt", "a.txt"}}
	if Compute(s1) != Compute(s2) {
		t.Fatalf("expected output-order-independent digest")
	}
}

func TestCompute_DifferentCallableDiffers(t *testing.T) {
	s1 := Spec{CallableIdentity: "pkg.Fn"}
	s2 := Spec{CallableIdentity: "pkg.OtherFn"}
	if Compute(s1) == Compute(s2) {
		t.Fatalf("expected different callable identities to diverge")
	}
}

func TestCompute_PathSubstitutionMakesContentSensitive(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "in.txt")

	if err := os.WriteFile(p, []byte("aaa"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	s := Spec{CallableIdentity: "pkg.Fn", Args: []any{p}}
	d1 := Compute(s)

	if err := os.WriteFile(p, []byte("aaaaaaaaaaaaaaaaaa"), 0o644); err != nil {
		t.Fatalf("rewrite fixture: %v", err)
	}
	d2 := Compute(s)

	if d1 == d2 {
		t.Fatalf("expected size change to alter digest")
	}
}

func TestCompute_NonPathScalarDifferenceMatters(t *testing.T) {
	s1 := Spec{CallableIdentity: "pkg.Fn", Args: []any{1}}
	s2 := Spec{CallableIdentity: "pkg.Fn", Args: []any{2}}
	if Compute(s1) == Compute(s2) {
		t.Fatalf("expected scalar argument difference to alter digest")
	}
}

func TestOpIdentity_SameCtorArgsCollide(t *testing.T) {
	id1 := OpIdentity("pkg.Multiplier", []any{2})
	id2 := OpIdentity("pkg.Multiplier", []any{2})
	if id1 != id2 {
		t.Fatalf("expected identical ctor args to collide")
	}
	id3 := OpIdentity("pkg.Multiplier", []any{3})
	if id1 == id3 {
		t.Fatalf("expected different ctor args to diverge")
	}
}
