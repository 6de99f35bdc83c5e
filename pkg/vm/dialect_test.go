package vm

import "testing"

func TestDialectMonotonic(t *testing.T) {
	if VersionV0.DisableLddw() {
		t.Fatal("V0 should still allow LD_DW_IMM")
	}
	if !VersionV2.DisableLddw() {
		t.Fatal("V2 should disable LD_DW_IMM")
	}
	if !VersionV3.DisableLddw() {
		t.Fatal("V3 should inherit V2's disable_lddw")
	}
}

func TestDialectStaticSyscallsOnlyV3(t *testing.T) {
	for _, v := range []Version{VersionV0, VersionV1, VersionV2} {
		if v.StaticSyscalls() {
			t.Fatalf("%s should not have static_syscalls", v)
		}
	}
	if !VersionV3.StaticSyscalls() {
		t.Fatal("V3 should have static_syscalls")
	}
}

func TestVersionString(t *testing.T) {
	cases := map[Version]string{VersionV0: "v0", VersionV1: "v1", VersionV2: "v2", VersionV3: "v3"}
	for v, want := range cases {
		if got := v.String(); got != want {
			t.Fatalf("%d.String() = %q, want %q", v, got, want)
		}
	}
}
