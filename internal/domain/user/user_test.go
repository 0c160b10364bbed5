package user

import "testing"

func strPtr(s string) *string { return &s }

func TestNewProfileView_ImagePath(t *testing.T) {
	tests := []struct {
		name   string
		stored *string
		want   *string
	}{
		{name: "no_image", stored: nil, want: nil},
		{name: "empty_image", stored: strPtr(""), want: nil},
		{name: "canonical_web_path", stored: strPtr("/UserImages/abc.png"), want: strPtr("/UserImages/abc.png")},
		{name: "legacy_absolute_path", stored: strPtr("/srv/app/UserImages/abc.jpg"), want: strPtr("/UserImages/abc.jpg")},
		{name: "legacy_windows_path", stored: strPtr(`C:\app\UserImages\abc.gif`), want: strPtr("/UserImages/abc.gif")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view := NewProfileView(User{ID: "1", Email: "a@x.com", ImageURL: tt.stored}, "UserImages")

			switch {
			case tt.want == nil && view.Image != nil:
				t.Fatalf("got image %q, want nil", *view.Image)
			case tt.want != nil && view.Image == nil:
				t.Fatalf("got nil image, want %q", *tt.want)
			case tt.want != nil && *view.Image != *tt.want:
				t.Fatalf("got image %q, want %q", *view.Image, *tt.want)
			}
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  A@X.Com "); got != "a@x.com" {
		t.Fatalf("got %q", got)
	}
}

func TestParseDateOfBirth(t *testing.T) {
	d, err := ParseDateOfBirth("")
	if err != nil || d != nil {
		t.Fatalf("empty: got %v, %v", d, err)
	}

	d, err = ParseDateOfBirth("1990-04-12")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Format(DateLayout) != "1990-04-12" {
		t.Fatalf("got %s", d)
	}

	if _, err := ParseDateOfBirth("12/04/1990"); err == nil {
		t.Fatalf("expected error for bad layout")
	}
}
