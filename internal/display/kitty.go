package display

import (
	"encoding/base64"
	"fmt"
	"io"
)

const (
	escapeStart = "\x1b_G"
	escapeEnd   = "\x1b\\"
	chunkSize   = 4096
)

// KittyEncoder writes PNG data using the kitty graphics protocol.
type KittyEncoder struct {
	out io.Writer
	// Columns scales the image to this many terminal cells. Zero keeps
	// the native size.
	Columns int
}

func NewKittyEncoder(out io.Writer, columns int) *KittyEncoder {
	return &KittyEncoder{out: out, Columns: columns}
}

func (e *KittyEncoder) Encode(png []byte) error {
	if len(png) == 0 {
		return nil
	}

	chunks := splitIntoChunks(base64.StdEncoding.EncodeToString(png), chunkSize)
	for i, chunk := range chunks {
		params := e.controlData(i == 0, i == len(chunks)-1)
		if _, err := fmt.Fprintf(e.out, "%s%s;%s%s", escapeStart, params, chunk, escapeEnd); err != nil {
			return err
		}
	}
	return nil
}

// controlData builds the key list for one chunk. Only the first chunk
// carries the transmit and format keys; m=1 marks more to follow.
func (e *KittyEncoder) controlData(first, last bool) string {
	more := "m=1"
	if last {
		more = "m=0"
	}
	if !first {
		return more
	}

	params := "a=T,f=100,q=2"
	if e.Columns > 0 {
		params += fmt.Sprintf(",c=%d", e.Columns)
	}
	if last {
		return params
	}
	return params + "," + more
}

func splitIntoChunks(s string, size int) []string {
	var chunks []string
	for len(s) > 0 {
		n := min(size, len(s))
		chunks = append(chunks, s[:n])
		s = s[n:]
	}
	return chunks
}
