package source

import (
	"io"
	"os"
)

// streamBatch is the number of names fetched from the kernel at a time.
const streamBatch = 128

// Stream iterates over the names in a directory in the order the source
// filesystem returns them. "." and ".." are never reported.
type Stream struct {
	file     *os.File
	pending  []string
	produced int
	done     bool
}

// Next returns the next entry name, or io.EOF once the directory is
// exhausted.
func (s *Stream) Next() (string, error) {
	if len(s.pending) == 0 {
		if s.done {
			return "", io.EOF
		}
		names, err := s.file.Readdirnames(streamBatch)
		if len(names) == 0 {
			if err == nil || err == io.EOF {
				s.done = true
				return "", io.EOF
			}
			return "", err
		}
		s.pending = names
	}
	name := s.pending[0]
	s.pending = s.pending[1:]
	s.produced++
	return name, nil
}

// Produced returns how many names Next has returned since the stream was
// opened or last rewound.
func (s *Stream) Produced() int {
	return s.produced
}

// Rewind repositions the stream at the first entry.
func (s *Stream) Rewind() error {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	s.pending = nil
	s.produced = 0
	s.done = false
	return nil
}

// Close releases the stream's descriptor.
func (s *Stream) Close() error {
	return s.file.Close()
}
