package display

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"
)

func TestKittyEncoder_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := NewKittyEncoder(&buf, 0).Encode(nil); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected empty output, got %q", buf.String())
	}
}

func TestKittyEncoder_SingleChunk(t *testing.T) {
	tests := []struct {
		name    string
		columns int
		params  string
	}{
		{"native size", 0, "a=T,f=100,q=2;"},
		{"scaled", 24, "a=T,f=100,q=2,c=24;"},
	}

	data := []byte("small test data")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := NewKittyEncoder(&buf, tt.columns).Encode(data); err != nil {
				t.Fatalf("Encode() error = %v", err)
			}

			want := escapeStart + tt.params + base64.StdEncoding.EncodeToString(data) + escapeEnd
			if buf.String() != want {
				t.Errorf("Encode() = %q, want %q", buf.String(), want)
			}
		})
	}
}

func TestKittyEncoder_Chunked(t *testing.T) {
	data := make([]byte, 5000)
	for i := range data {
		data[i] = byte(i % 256)
	}

	var buf bytes.Buffer
	if err := NewKittyEncoder(&buf, 10).Encode(data); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	parts := strings.Split(strings.TrimSuffix(buf.String(), escapeEnd), escapeEnd)
	if len(parts) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(parts))
	}
	if !strings.HasPrefix(parts[0], escapeStart+"a=T,f=100,q=2,c=10,m=1;") {
		t.Errorf("first chunk header = %q", parts[0][:40])
	}
	if !strings.HasPrefix(parts[1], escapeStart+"m=0;") {
		t.Errorf("last chunk header = %q", parts[1][:10])
	}

	var payload strings.Builder
	for _, p := range parts {
		payload.WriteString(p[strings.Index(p, ";")+1:])
	}
	decoded, err := base64.StdEncoding.DecodeString(payload.String())
	if err != nil {
		t.Fatalf("reassembled payload is not base64: %v", err)
	}
	if !bytes.Equal(decoded, data) {
		t.Error("reassembled payload differs from input")
	}
}

func TestSplitIntoChunks(t *testing.T) {
	tests := []struct {
		in   string
		size int
		want []string
	}{
		{"", 4, nil},
		{"abc", 4, []string{"abc"}},
		{"abcd", 4, []string{"abcd"}},
		{"abcdefghij", 4, []string{"abcd", "efgh", "ij"}},
	}

	for _, tt := range tests {
		got := splitIntoChunks(tt.in, tt.size)
		if strings.Join(got, "|") != strings.Join(tt.want, "|") || len(got) != len(tt.want) {
			t.Errorf("splitIntoChunks(%q, %d) = %v, want %v", tt.in, tt.size, got, tt.want)
		}
	}
}
