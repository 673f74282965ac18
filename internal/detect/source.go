package detect

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
)

// FileSource reads the newest frame for one road from a file on disk. A
// camera daemon overwrites the file in place; each read picks up whatever
// is current.
type FileSource struct {
	path string
}

// NewFileSource creates a source reading frames from path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// NextFrame reads the file and returns it base64-encoded.
func (s *FileSource) NextFrame(_ context.Context) (string, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return "", fmt.Errorf("read frame %s: %w", s.path, err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

var _ FrameSource = (*FileSource)(nil)
