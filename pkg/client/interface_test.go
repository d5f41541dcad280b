package client

import "testing"

func TestFaceRequestMIMEType(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{"png", "image/png"},
		{"PNG", "image/png"},
		{".png", "image/png"},
		{"jpg", "image/jpeg"},
		{"jpeg", "image/jpeg"},
		{"", "image/jpeg"},
	}

	for _, tt := range tests {
		if got := (FaceRequest{Format: tt.format}).MIMEType(); got != tt.want {
			t.Errorf("MIMEType(%q) = %q, want %q", tt.format, got, tt.want)
		}
	}
}

func TestFaceRequestDataURI(t *testing.T) {
	req := FaceRequest{Image: "aGVsbG8=", Format: "png"}
	if got, want := req.DataURI(), "data:image/png;base64,aGVsbG8="; got != want {
		t.Errorf("DataURI() = %q, want %q", got, want)
	}
}
