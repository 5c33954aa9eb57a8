package checksum

import "testing"

func TestSumStable(t *testing.T) {
	a := Sum([]byte(`{"files":{}}`))
	if len(a) != 64 {
		t.Fatalf("len = %d, want 64", len(a))
	}
	if a != Sum([]byte(`{"files":{}}`)) {
		t.Error("sum not stable")
	}
	if a == Sum([]byte(`{"files":{} }`)) {
		t.Error("different input, same sum")
	}
}

func TestMatches(t *testing.T) {
	data := []byte("doc")
	if !Matches(data, Sum(data)) {
		t.Error("expected match")
	}
	if Matches(data, "") {
		t.Error("empty sum must not match")
	}
	if Matches([]byte("other"), Sum(data)) {
		t.Error("unexpected match")
	}
}
