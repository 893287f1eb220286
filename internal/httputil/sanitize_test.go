package httputil

import (
	"errors"
	"testing"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"valid HTTPS", "https://example.com/path", false},
		{"plain HTTP", "http://127.0.0.1:8080/oembed", false},
		{"javascript scheme rejected", "javascript:alert(1)", true},
		{"data scheme rejected", "data:text/html,<h1>Hi</h1>", true},
		{"FTP rejected", "ftp://example.com/file", true},
		{"file rejected", "file:///etc/passwd", true},
		{"empty string", "", true},
		{"no host", "https://", true},
		{"valid with port", "https://example.com:8080/path", false},
		{"valid with query", "https://example.com/path?q=test&a=b", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidURL) {
				t.Errorf("ValidateURL(%q) error %v does not wrap ErrInvalidURL", tt.url, err)
			}
		})
	}
}

func TestIsRemote(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"https://oembed.com/providers.json", true},
		{"http://localhost/providers.json", true},
		{"providers.json", false},
		{"/etc/oembedder/providers.json", false},
		{"ftp://example.com/providers.json", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := IsRemote(tt.in); got != tt.want {
				t.Errorf("IsRemote(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"normal filename", "post.html", "post.html"},
		{"path traversal", "../../etc/passwd", "passwd"},
		{"directory components", "/home/user/secret.txt", "secret.txt"},
		{"null bytes", "post\x00.html", "post.html"},
		{"Windows special chars", "post<>:\"|?*.html", "post_______.html"},
		{"double dots", "post..html", "post_html"},
		{"empty string", "", "untitled"},
		{"just dot", ".", "untitled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeFilename(tt.input)
			if got != tt.expected {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSafeOutputPath(t *testing.T) {
	tests := []struct {
		name     string
		dir      string
		filename string
		want     string
	}{
		{"normal", "/tmp/site", "index.html", "/tmp/site/index.html"},
		{"path traversal attempt", "/tmp/site", "../../etc/passwd", "/tmp/site/passwd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, err := SafeOutputPath(tt.dir, tt.filename)
			if err != nil {
				t.Fatalf("SafeOutputPath(%q, %q) error = %v", tt.dir, tt.filename, err)
			}
			if path != tt.want {
				t.Errorf("SafeOutputPath(%q, %q) = %q, want %q", tt.dir, tt.filename, path, tt.want)
			}
		})
	}
}

func TestHTMLName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"README.md", "README.html"},
		{"docs/guide.markdown", "guide.html"},
		{"notes", "notes.html"},
		{"../escape.md", "escape.html"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := HTMLName(tt.input); got != tt.expected {
				t.Errorf("HTMLName(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
