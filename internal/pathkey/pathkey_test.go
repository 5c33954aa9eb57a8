package pathkey

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"/a/B.txt", "/a/b.txt"},
		{`C:\Users\Me\File.GO`, "c:/users/me/file.go"},
		{"/a//b///c.txt", "/a/b/c.txt"},
		{"/a/./b/../c.txt", "/a/c.txt"},
		{"/Dir/", "/dir"},
		{"", ""},
		{"   ", "   "},
	}
	for _, c := range cases {
		if got := Normalize(c.in); got != c.want {
			t.Errorf("Normalize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"/a/B.txt",
		`C:\\Mixed/Sep\\Path`,
		"../rel/../Path",
		"ÄÖÜ/Straße.md",
		"",
		".",
		"//",
	}
	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestEqual_CaseAndSeparator(t *testing.T) {
	if !Equal(`/Proj\Src\Main.go`, "/proj/src/main.go") {
		t.Error("expected paths differing by case and separator to be equal")
	}
	if Equal("/a/b.txt", "/a/c.txt") {
		t.Error("distinct paths reported equal")
	}
}

func TestBase(t *testing.T) {
	if got := Base("/a/b/c.txt"); got != "c.txt" {
		t.Errorf("Base = %q", got)
	}
	if got := Base(""); got != "" {
		t.Errorf("Base(empty) = %q", got)
	}
}
