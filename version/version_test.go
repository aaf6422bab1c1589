package version

import (
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	info := Get()
	if info.Version != Version {
		t.Errorf("Version = %q", info.Version)
	}
}

func TestString(t *testing.T) {
	plain := Info{Version: "1.2.0"}
	if plain.String() != "1.2.0" {
		t.Errorf("String = %q", plain.String())
	}

	long := Info{Version: "1.2.0", GitCommit: "0123456789abcdef0123"}
	got := long.String()
	if !strings.HasPrefix(got, "1.2.0 (") || len(got) > len("1.2.0 (0123456789ab)") {
		t.Errorf("String = %q", got)
	}
}
