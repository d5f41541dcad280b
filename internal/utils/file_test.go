package utils

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestIsImageFile(t *testing.T) {
	tests := map[string]bool{
		"a.png":           true,
		"a.PNG":           true,
		"b.jpg":           true,
		"b.JpG":           true,
		"c.jpeg":          true,
		"c.JPEG":          true,
		"d.gif":           false,
		"e.webp":          false,
		"noext":           false,
		"archive.png.zip": false,
	}
	for name, want := range tests {
		if got := IsImageFile(name); got != want {
			t.Errorf("IsImageFile(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestListImageFiles(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "a.png"))
	touch(t, filepath.Join(root, "sub", "b.JPG"))
	touch(t, filepath.Join(root, "sub", "deep", "c.jpeg"))
	touch(t, filepath.Join(root, "sub", "notes.txt"))
	touch(t, filepath.Join(root, "out", "a.png"))

	files, err := ListImageFiles(root, []string{filepath.Join(root, "out")}, nil)
	if err != nil {
		t.Fatalf("ListImageFiles failed: %v", err)
	}

	want := []string{
		filepath.Join(root, "a.png"),
		filepath.Join(root, "sub", "b.JPG"),
		filepath.Join(root, "sub", "deep", "c.jpeg"),
	}
	slices.Sort(files)
	slices.Sort(want)
	if !slices.Equal(files, want) {
		t.Errorf("ListImageFiles = %v, want %v", files, want)
	}
}

func TestListImageFilesMissingRoot(t *testing.T) {
	if _, err := ListImageFiles(filepath.Join(t.TempDir(), "missing"), nil, nil); err == nil {
		t.Error("Expected error for missing root")
	}
}

func TestListImageFilesSkipsUnreadableSubdirectory(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for root")
	}

	root := t.TempDir()
	touch(t, filepath.Join(root, "a.png"))
	touch(t, filepath.Join(root, "locked", "hidden.png"))
	touch(t, filepath.Join(root, "z", "b.png"))

	locked := filepath.Join(root, "locked")
	if err := os.Chmod(locked, 0); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chmod(locked, 0755) })

	var skipped []string
	files, err := ListImageFiles(root, nil, func(path string, err error) {
		skipped = append(skipped, path)
	})
	if err != nil {
		t.Fatalf("ListImageFiles failed: %v", err)
	}

	want := []string{filepath.Join(root, "a.png"), filepath.Join(root, "z", "b.png")}
	slices.Sort(files)
	if !slices.Equal(files, want) {
		t.Errorf("ListImageFiles = %v, want %v", files, want)
	}
	if !slices.Equal(skipped, []string{locked}) {
		t.Errorf("skipped = %v, want [%s]", skipped, locked)
	}
}

func TestMirrorPath(t *testing.T) {
	in := filepath.Join("/data", "in")
	out := filepath.Join("/data", "out")

	rel, got, err := MirrorPath(in, out, filepath.Join(in, "sub", "a.png"))
	if err != nil {
		t.Fatalf("MirrorPath failed: %v", err)
	}
	if rel != filepath.Join("sub", "a.png") {
		t.Errorf("rel = %q", rel)
	}
	if got != filepath.Join(out, "sub", "a.png") {
		t.Errorf("out = %q", got)
	}

	if _, _, err := MirrorPath(in, out, filepath.Join("/data", "other", "a.png")); err == nil {
		t.Error("Expected error for a path outside the input root")
	}
}

func TestEnsureDirIdempotent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	for i := 0; i < 2; i++ {
		if err := EnsureDir(dir); err != nil {
			t.Fatalf("EnsureDir call %d failed: %v", i, err)
		}
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("Expected directory to exist, got %v", err)
	}
}
