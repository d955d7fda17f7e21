package report

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestCollectAudioFiles(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	for _, name := range []string{"b/02.FLAC", "a/01.m4a", "a/cover.jpg", "notes.txt", "c/d/03.opus"} {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			t.Fatal(err)
		}

		if err := os.WriteFile(path, nil, 0o600); err != nil {
			t.Fatal(err)
		}
	}

	files, err := CollectAudioFiles(root)
	if err != nil {
		t.Fatal(err)
	}

	want := []string{
		filepath.Join(root, "a/01.m4a"),
		filepath.Join(root, "b/02.FLAC"),
		filepath.Join(root, "c/d/03.opus"),
	}

	if !slices.Equal(files, want) {
		t.Errorf("files = %v, want %v", files, want)
	}

	if _, err := CollectAudioFiles(filepath.Join(root, "missing")); err == nil {
		t.Error("expected an error for a missing root")
	}
}
