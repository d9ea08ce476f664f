// Package chunking splits transcript text into overlapping windows for
// retrieval indexing.
package chunking

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/helixml/vidchat/domain"
)

// Params configures the splitter. Size and Overlap are measured in runes.
type Params struct {
	Size    int
	Overlap int
}

// DefaultParams returns the transcript defaults: 300 runes with 30 overlap.
func DefaultParams() Params {
	return Params{Size: 300, Overlap: 30}
}

// Validate reports whether the parameters can produce chunks.
func (p Params) Validate() error {
	switch {
	case p.Size <= 0:
		return fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrValidation, p.Size)
	case p.Overlap < 0:
		return fmt.Errorf("%w: chunk overlap must not be negative, got %d", domain.ErrValidation, p.Overlap)
	case p.Overlap >= p.Size:
		return fmt.Errorf("%w: overlap (%d) must be less than size (%d)", domain.ErrValidation, p.Overlap, p.Size)
	}
	return nil
}

// separators in priority order. The empty separator splits into runes.
var separators = []string{"\n\n", "\n", ". ", " ", ""}

// Split divides text into chunks of at most Size runes. The coarsest
// separator present is tried first; only pieces still longer than Size are
// split again with finer separators. Adjacent chunks share up to Overlap
// runes carried from the tail of the previous chunk. Newlines inside a chunk
// become spaces. Output is deterministic.
func Split(text string, params Params) ([]string, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	s := splitter{size: params.Size, overlap: params.Overlap}
	s.split(text, separators)
	return s.chunks, nil
}

type splitter struct {
	size    int
	overlap int
	chunks  []string
}

func (s *splitter) split(text string, seps []string) {
	sep, finer := pickSeparator(text, seps)

	var fitting []string
	for _, piece := range splitKeep(text, sep) {
		if utf8.RuneCountInString(piece) <= s.size {
			fitting = append(fitting, piece)
			continue
		}
		s.merge(fitting)
		fitting = nil
		s.split(piece, finer)
	}
	s.merge(fitting)
}

// merge packs pieces greedily into windows, carrying an overlap tail
// between consecutive windows.
func (s *splitter) merge(pieces []string) {
	var window []string
	total := 0

	for _, p := range pieces {
		n := utf8.RuneCountInString(p)
		if total+n > s.size && len(window) > 0 {
			s.emit(window)
			for len(window) > 0 && (total > s.overlap || total+n > s.size) {
				total -= utf8.RuneCountInString(window[0])
				window = window[1:]
			}
		}
		window = append(window, p)
		total += n
	}
	s.emit(window)
}

func (s *splitter) emit(window []string) {
	text := strings.Join(window, "")
	text = strings.ReplaceAll(text, "\r\n", " ")
	text = strings.ReplaceAll(text, "\n", " ")
	text = strings.TrimSpace(text)
	if text != "" {
		s.chunks = append(s.chunks, text)
	}
}

func pickSeparator(text string, seps []string) (string, []string) {
	for i, sep := range seps {
		if sep == "" || strings.Contains(text, sep) {
			return sep, seps[i+1:]
		}
	}
	return "", nil
}

// splitKeep splits text after each separator so that joining the pieces
// reproduces text exactly.
func splitKeep(text, sep string) []string {
	if sep == "" {
		pieces := make([]string, 0, utf8.RuneCountInString(text))
		for _, r := range text {
			pieces = append(pieces, string(r))
		}
		return pieces
	}
	parts := strings.SplitAfter(text, sep)
	if len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}
