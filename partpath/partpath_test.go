package partpath

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []struct {
		path string
		n    int
	}{
		{"/cuckoo.tar", 0},
		{"/a/b/c.bin", 12},
		{"/weird.name.with.dots", 3},
	}

	for _, c := range cases {
		encoded := Encode(c.path, c.n)
		logical, n, ok := Decode(encoded)
		if !ok {
			t.Fatalf("Decode(%q) failed to parse", encoded)
		}
		if logical != c.path || n != c.n {
			t.Errorf("Decode(%q) = (%q, %d), want (%q, %d)", encoded, logical, n, c.path, c.n)
		}
	}
}

func TestDecodeRejectsNonParts(t *testing.T) {
	for _, q := range []string{"/cuckoo.tar", "/cuckoo.part", "/cuckoo.part01", "/cuckoo.part-1", "/cuckoo.partx"} {
		if IsPart(q) {
			t.Errorf("IsPart(%q) = true, want false", q)
		}
	}
}

func TestIsPartZero(t *testing.T) {
	if !IsPartZero("/f.part0") {
		t.Error("expected /f.part0 to be part zero")
	}
	if IsPartZero("/f.part1") {
		t.Error("did not expect /f.part1 to be part zero")
	}
}
