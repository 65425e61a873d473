package pool

import "testing"

func TestIsConfigResourceMatchesKnownSuffixes(t *testing.T) {
	cases := map[string]bool{
		"module-info.properties": true,
		"app.config":             true,
		"settings.ini":           true,
		"Main.class":             false,
		"README":                 false,
	}

	for path, want := range cases {
		if got := IsConfigResource(path); got != want {
			t.Errorf("IsConfigResource(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestNormalizeConfigTextStripsUTF8BOM(t *testing.T) {
	withBOM := append([]byte{0xEF, 0xBB, 0xBF}, []byte("key=value\n")...)

	out, err := NormalizeConfigText(withBOM)
	if err != nil {
		t.Fatalf("NormalizeConfigText: %v", err)
	}

	if string(out) != "key=value\n" {
		t.Fatalf("expected BOM stripped, got %q", out)
	}
}

func TestNormalizeConfigTextLeavesPlainUTF8Unchanged(t *testing.T) {
	plain := []byte("key=value\n")

	out, err := NormalizeConfigText(plain)
	if err != nil {
		t.Fatalf("NormalizeConfigText: %v", err)
	}

	if string(out) != "key=value\n" {
		t.Fatalf("expected content unchanged, got %q", out)
	}
}
