package utils

import (
	"os"
	"path/filepath"
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
	for _, name := range []string{"a.jpg", "B.JPEG", "c.png", "d.webp", "e.tif"} {
		if !IsImageFile(name) {
			t.Errorf("%s should be an image", name)
		}
	}
	for _, name := range []string{"a.txt", "noext", "archive.zip"} {
		if IsImageFile(name) {
			t.Errorf("%s should not be an image", name)
		}
	}
}

func TestGenerateOutputFilename(t *testing.T) {
	tests := []struct {
		input, dir, prefix, suffix, format string
		want                               string
	}{
		{"photos/cat.png", "out", "", "_resized", "jpg", filepath.Join("out", "cat_resized.jpg")},
		{"dog.webp", "out", "thumb_", "", ".png", filepath.Join("out", "thumb_dog.png")},
		{"https://example.com/img/bird.jpg?size=large", "out", "", "", "webp", filepath.Join("out", "bird.webp")},
		{"noext", "", "", "", "", "noext.jpg"},
		{"...", "o", "", "", "png", filepath.Join("o", "image.png")},
	}
	for _, tt := range tests {
		got := GenerateOutputFilename(tt.input, tt.dir, tt.prefix, tt.suffix, tt.format)
		if got != tt.want {
			t.Errorf("GenerateOutputFilename(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestListImageFiles(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "b.png"))
	touch(t, filepath.Join(dir, "a.jpg"))
	touch(t, filepath.Join(dir, "notes.txt"))
	touch(t, filepath.Join(dir, "sub", "c.webp"))

	files, err := ListImageFiles(dir)
	if err != nil {
		t.Fatalf("ListImageFiles failed: %v", err)
	}
	want := []string{
		filepath.Join(dir, "a.jpg"),
		filepath.Join(dir, "b.png"),
		filepath.Join(dir, "sub", "c.webp"),
	}
	if len(files) != len(want) {
		t.Fatalf("got %v, want %v", files, want)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("files[%d] = %s, want %s", i, files[i], want[i])
		}
	}
}

func TestExpandInputs(t *testing.T) {
	dir := t.TempDir()
	single := filepath.Join(dir, "single.png")
	touch(t, single)
	touch(t, filepath.Join(dir, "set", "one.jpg"))
	touch(t, filepath.Join(dir, "set", "two.jpg"))

	got, err := ExpandInputs([]string{
		single,
		filepath.Join(dir, "set"),
		" https://example.com/x.png ",
		single,
		"",
	})
	if err != nil {
		t.Fatalf("ExpandInputs failed: %v", err)
	}
	want := []string{
		single,
		filepath.Join(dir, "set", "one.jpg"),
		filepath.Join(dir, "set", "two.jpg"),
		"https://example.com/x.png",
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	if _, err := ExpandInputs([]string{filepath.Join(dir, "missing.png")}); err == nil {
		t.Error("expected error for missing input")
	}
}

func TestSanitizeFilename(t *testing.T) {
	if got := SanitizeFilename(` a:b*c?.`); got != "a_b_c_" {
		t.Errorf("SanitizeFilename = %q", got)
	}
}

func TestFormatFileSize(t *testing.T) {
	tests := map[int64]string{
		512:             "512 B",
		2048:            "2.0 KB",
		5 * 1024 * 1024: "5.0 MB",
	}
	for size, want := range tests {
		if got := FormatFileSize(size); got != want {
			t.Errorf("FormatFileSize(%d) = %q, want %q", size, got, want)
		}
	}
}
