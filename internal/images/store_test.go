package images

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"
)

// smallest valid PNG header + IHDR, enough for content sniffing.
var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89"), bytes.Repeat([]byte{0x42}, 64)...)

func TestStore_SaveRoundTrip(t *testing.T) {
	dir := t.TempDir() + "/nested/UserImages"
	s := NewStore(dir, "UserImages", 1<<20)

	webPath, err := s.Save(context.Background(), bytes.NewReader(pngBytes), "Me.PNG")
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	if !strings.HasPrefix(webPath, "/UserImages/") || !strings.HasSuffix(webPath, ".png") {
		t.Fatalf("unexpected web path %q", webPath)
	}

	got, err := os.ReadFile(s.Path(webPath))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if !bytes.Equal(got, pngBytes) {
		t.Fatalf("stored bytes differ from upload")
	}
}

func TestStore_SaveGeneratesDistinctNames(t *testing.T) {
	s := NewStore(t.TempDir(), "/UserImages/", 0)

	a, err := s.Save(context.Background(), bytes.NewReader(pngBytes), "a.png")
	if err != nil {
		t.Fatalf("save a: %v", err)
	}
	b, err := s.Save(context.Background(), bytes.NewReader(pngBytes), "a.png")
	if err != nil {
		t.Fatalf("save b: %v", err)
	}
	if a == b {
		t.Fatalf("two uploads share a name: %s", a)
	}
}

func TestStore_SaveRejects(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		max     int64
		wantErr error
	}{
		{name: "empty", data: nil, wantErr: ErrEmpty},
		{name: "not_an_image", data: []byte("hello, plain text"), wantErr: ErrUnsupportedType},
		{name: "too_large", data: pngBytes, max: 16, wantErr: ErrTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			s := NewStore(dir, "UserImages", tt.max)

			_, err := s.Save(context.Background(), bytes.NewReader(tt.data), "x.png")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}

			entries, _ := os.ReadDir(dir)
			if len(entries) != 0 {
				t.Fatalf("rejected upload left %d files behind", len(entries))
			}
		})
	}
}

func TestStore_InspectReplaysContent(t *testing.T) {
	s := NewStore(t.TempDir(), "UserImages", 1<<20)

	r, err := s.Inspect(bytes.NewReader(pngBytes), int64(len(pngBytes)))
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}

	webPath, err := s.Save(context.Background(), r, "me.png")
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := os.ReadFile(s.Path(webPath))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if !bytes.Equal(got, pngBytes) {
		t.Fatalf("inspected upload was not replayed intact")
	}
}

func TestStore_InspectDeclaredSize(t *testing.T) {
	s := NewStore(t.TempDir(), "UserImages", 10)

	if _, err := s.Inspect(bytes.NewReader(pngBytes), 11); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("got %v, want ErrTooLarge", err)
	}
}

func TestStore_SaveNamesFileByDetectedFormat(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		fileName string
		wantExt  string
	}{
		{name: "png_named_jpg", data: pngBytes, fileName: "me.jpg", wantExt: ".png"},
		{name: "gif_html_polyglot", data: []byte("GIF89a<html><script src=/UserImages/x.js></script></html>"), fileName: "avatar.html", wantExt: ".gif"},
		{name: "no_extension", data: pngBytes, fileName: "avatar", wantExt: ".png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			s := NewStore(dir, "UserImages", 1<<20)

			webPath, err := s.Save(context.Background(), bytes.NewReader(tt.data), tt.fileName)
			if err != nil {
				t.Fatalf("save: %v", err)
			}
			if !strings.HasSuffix(webPath, tt.wantExt) {
				t.Fatalf("got %q, want extension %s", webPath, tt.wantExt)
			}

			entries, _ := os.ReadDir(dir)
			for _, e := range entries {
				if !strings.HasSuffix(e.Name(), tt.wantExt) {
					t.Fatalf("stored %s", e.Name())
				}
			}
		})
	}
}

func TestStore_RejectsSVG(t *testing.T) {
	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg" onload="alert(1)"><rect width="1" height="1"/></svg>`)
	dir := t.TempDir()
	s := NewStore(dir, "UserImages", 1<<20)

	if _, err := s.Inspect(bytes.NewReader(svg), int64(len(svg))); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("inspect: got %v, want ErrUnsupportedType", err)
	}
	if _, err := s.Save(context.Background(), bytes.NewReader(svg), "avatar.svg"); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("save: got %v, want ErrUnsupportedType", err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("rejected upload left %d files behind", len(entries))
	}
}
