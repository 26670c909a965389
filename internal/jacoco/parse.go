package jacoco

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"

	"golang.org/x/net/html/charset"
)

// DefaultMaxBytes bounds the size of a report read by Parse.
const DefaultMaxBytes int64 = 256 << 20

var (
	// ErrUnsafeDoctype is returned when the document type declaration carries
	// an internal subset with entity declarations.
	ErrUnsafeDoctype = errors.New("document type declaration defines entities")

	// ErrTooLarge is returned when a report exceeds Options.MaxBytes.
	ErrTooLarge = errors.New("report exceeds size limit")

	// ErrNotReport is returned when the root element is not <report>.
	ErrNotReport = errors.New("root element is not <report>")
)

// ParseError wraps every failure to read a report document.
type ParseError struct {
	Line int // 0 when unknown
	Err  error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse coverage report: line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("parse coverage report: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Options tune Parse.
type Options struct {
	// MaxBytes caps the number of bytes read. Zero means DefaultMaxBytes.
	MaxBytes int64
}

// Parse reads a report with default options.
func Parse(r io.Reader) (*Report, error) {
	return ParseWithOptions(r, Options{})
}

// ParseWithOptions reads a JaCoCo XML report from r.
//
// encoding/xml never loads external DTDs or resolves external entities; a
// DOCTYPE pointing at report.dtd is skipped without any I/O. On top of that
// the decoder runs in strict mode without an entity table, so references to
// undeclared entities fail, and internal subsets that declare entities are
// refused outright.
func ParseWithOptions(r io.Reader, opts Options) (*Report, error) {
	limit := opts.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}

	dec := xml.NewDecoder(&limitReader{r: r, remaining: limit + 1})
	dec.Strict = true
	dec.CharsetReader = charset.NewReaderLabel

	var report *Report
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, newParseError(err)
		}

		switch t := tok.(type) {
		case xml.Directive:
			if bytes.Contains(t, []byte("<!ENTITY")) {
				return nil, &ParseError{Err: ErrUnsafeDoctype}
			}
		case xml.StartElement:
			if report != nil {
				return nil, &ParseError{Err: fmt.Errorf("unexpected element <%s> after </report>", t.Name.Local)}
			}
			if t.Name.Local != "report" {
				return nil, &ParseError{Err: fmt.Errorf("%w: got <%s>", ErrNotReport, t.Name.Local)}
			}
			report = &Report{}
			if err := dec.DecodeElement(report, &t); err != nil {
				return nil, newParseError(err)
			}
		}
	}

	if report == nil {
		return nil, &ParseError{Err: errors.New("document has no <report> element")}
	}
	return report, nil
}

func newParseError(err error) *ParseError {
	var syntaxErr *xml.SyntaxError
	if errors.As(err, &syntaxErr) {
		return &ParseError{Line: syntaxErr.Line, Err: err}
	}
	return &ParseError{Err: err}
}

// limitReader fails with ErrTooLarge once more than the allowed number of
// bytes has been read. remaining starts at limit+1 so a document of exactly
// limit bytes still reaches EOF.
type limitReader struct {
	r         io.Reader
	remaining int64
}

func (l *limitReader) Read(p []byte) (int, error) {
	if l.remaining <= 0 {
		return 0, ErrTooLarge
	}
	if int64(len(p)) > l.remaining {
		p = p[:l.remaining]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining <= 0 {
		return n, ErrTooLarge
	}
	return n, err
}

// AllPackages returns the top-level packages followed by the packages of
// every group, depth-first in document order.
func (r *Report) AllPackages() []Package {
	pkgs := append([]Package(nil), r.Packages...)
	var walk func(groups []Group)
	walk = func(groups []Group) {
		for _, g := range groups {
			pkgs = append(pkgs, g.Packages...)
			walk(g.Groups)
		}
	}
	walk(r.Groups)
	return pkgs
}
