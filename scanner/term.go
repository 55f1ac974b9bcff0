package scanner

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// termKind discriminates how a term is evaluated against a file.
type termKind int

const (
	termName termKind = iota
	termFileKind
	termContent
	termSizeAbove
	termSizeBelow
)

// compiledTerm is a parsed term ready for evaluation. content: terms are
// evaluated collectively through one Aho-Corasick pass; the matcher index
// links a content hit back to its term.
type compiledTerm struct {
	term    *Term
	kind    termKind
	pattern string
	size    int64
}

// ParseTerm builds a Term from its textual spec. Supported forms:
//
//	name:<glob>    file-name glob (a bare spec is shorthand for this)
//	kind:<class>   content-sniffed file class, e.g. kind:image, kind:zip
//	content:<s>    files whose content contains s
//	size>N         files strictly larger than N bytes
//	size<N         files strictly smaller than N bytes
func ParseTerm(spec string) (*Term, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("empty term")
	}
	t := &Term{Spec: spec, Description: spec}
	if _, err := compileTerm(t); err != nil {
		return nil, err
	}
	return t, nil
}

func compileTerm(t *Term) (compiledTerm, error) {
	spec := t.Spec
	switch {
	case strings.HasPrefix(spec, "name:"):
		glob := spec[len("name:"):]
		if _, err := filepath.Match(glob, "probe"); err != nil {
			return compiledTerm{}, fmt.Errorf("term %q: bad glob: %w", spec, err)
		}
		return compiledTerm{term: t, kind: termName, pattern: glob}, nil
	case strings.HasPrefix(spec, "kind:"):
		class := strings.ToLower(spec[len("kind:"):])
		if class == "" {
			return compiledTerm{}, fmt.Errorf("term %q: empty kind", spec)
		}
		return compiledTerm{term: t, kind: termFileKind, pattern: class}, nil
	case strings.HasPrefix(spec, "content:"):
		needle := spec[len("content:"):]
		if needle == "" {
			return compiledTerm{}, fmt.Errorf("term %q: empty content pattern", spec)
		}
		return compiledTerm{term: t, kind: termContent, pattern: needle}, nil
	case strings.HasPrefix(spec, "size>"):
		n, err := strconv.ParseInt(spec[len("size>"):], 10, 64)
		if err != nil {
			return compiledTerm{}, fmt.Errorf("term %q: %w", spec, err)
		}
		return compiledTerm{term: t, kind: termSizeAbove, size: n}, nil
	case strings.HasPrefix(spec, "size<"):
		n, err := strconv.ParseInt(spec[len("size<"):], 10, 64)
		if err != nil {
			return compiledTerm{}, fmt.Errorf("term %q: %w", spec, err)
		}
		return compiledTerm{term: t, kind: termSizeBelow, size: n}, nil
	default:
		if _, err := filepath.Match(spec, "probe"); err != nil {
			return compiledTerm{}, fmt.Errorf("term %q: bad glob: %w", spec, err)
		}
		return compiledTerm{term: t, kind: termName, pattern: spec}, nil
	}
}
