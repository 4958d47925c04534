package service

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStringSet(t *testing.T) {
	ss := StringSet{}
	ss.Push("B02")
	ss.Push("B03")
	ss.Push("B02")
	if len(ss.Slice()) != 2 {
		t.Errorf("expected 2 elements, got %d", len(ss.Slice()))
	}
	if !ss.Exists("B03") {
		t.Error("B03 not found")
	}
	ss.Pop("B03")
	if ss.Exists("B03") {
		t.Error("B03 not removed")
	}
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.tif")
	dst := filepath.Join(dir, "dst.tif")
	if err := os.WriteFile(src, []byte("raster bytes"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := CopyFile(src, dst); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "raster bytes" {
		t.Errorf("unexpected content: %s", b)
	}
}
