package fs

import (
	"errors"
	"testing"
)

func TestSourcePath(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "simple path",
			input:    "test.txt",
			expected: "test.txt",
		},
		{
			name:     "nested path",
			input:    "dir/test.txt",
			expected: "dir/test.txt",
		},
		{
			name:     "absolute path gets cleaned",
			input:    "/dir/test.txt",
			expected: "dir/test.txt",
		},
		{
			name:     "dot path gets cleaned",
			input:    "./test.txt",
			expected: "test.txt",
		},
		{
			name:     "double dot path gets cleaned",
			input:    "dir/../test.txt",
			expected: "test.txt",
		},
		{
			name:     "cannot climb above the root",
			input:    "../../etc/passwd",
			expected: "etc/passwd",
		},
		{
			name:     "empty path is the root",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sp := NewSourcePath(tt.input)
			if sp.String() != tt.expected {
				t.Errorf("Expected path %q, got %q", tt.expected, sp.String())
			}
		})
	}
}

func TestSourcePathParent(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", ""},
		{"a", ""},
		{"a/b", "a"},
		{"a/b/c", "a/b"},
	}

	for _, tt := range tests {
		got := NewSourcePath(tt.input).Parent()
		if got.String() != tt.expected {
			t.Errorf("Parent(%q) = %q, want %q", tt.input, got.String(), tt.expected)
		}
	}

	if !NewSourcePath("").Parent().IsRoot() {
		t.Error("Expected the root to be its own parent")
	}
}

func TestSourcePathChild(t *testing.T) {
	tests := []struct {
		name     string
		parent   string
		child    string
		expected string
		wantErr  bool
	}{
		{name: "child of root", parent: "", child: "a", expected: "a"},
		{name: "nested child", parent: "a/b", child: "c", expected: "a/b/c"},
		{name: "dot is self", parent: "a", child: ".", expected: "a"},
		{name: "dot dot is parent", parent: "a/b", child: "..", expected: "a"},
		{name: "dot dot of root stays at root", parent: "", child: "..", expected: ""},
		{name: "hidden file", parent: "a", child: ".hidden", expected: "a/.hidden"},
		{name: "empty name", parent: "a", child: "", wantErr: true},
		{name: "slash in name", parent: "a", child: "b/c", wantErr: true},
		{name: "nul in name", parent: "a", child: "b\x00", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewSourcePath(tt.parent).Child(tt.child)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidArgument) {
					t.Errorf("Expected ErrInvalidArgument, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got.String() != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got.String())
			}
		})
	}
}
