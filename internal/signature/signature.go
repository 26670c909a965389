// Package signature turns JVM method descriptors into readable method
// signatures, e.g. ("bar", "(ILjava/lang/String;)V") -> "void bar(int,java.lang.String)".
package signature

import (
	"errors"
	"fmt"
	"strings"
)

// Formatter builds a display signature from a method name and its raw descriptor.
type Formatter interface {
	Format(name, desc string) (string, error)
}

// ErrInvalidDescriptor is returned for descriptors that are not valid JVM method descriptors.
var ErrInvalidDescriptor = errors.New("invalid method descriptor")

// Descriptor formats JVM method descriptors as "<return> <name>(<args>)"
// using Java source type names.
type Descriptor struct{}

// Format implements Formatter.
func (Descriptor) Format(name, desc string) (string, error) {
	if !strings.HasPrefix(desc, "(") {
		return "", fmt.Errorf("%w: %q: missing '('", ErrInvalidDescriptor, desc)
	}

	var args []string
	pos := 1
	for {
		if pos >= len(desc) {
			return "", fmt.Errorf("%w: %q: missing ')'", ErrInvalidDescriptor, desc)
		}
		if desc[pos] == ')' {
			pos++
			break
		}
		typ, next, err := parseType(desc, pos, false)
		if err != nil {
			return "", err
		}
		args = append(args, typ)
		pos = next
	}

	ret, next, err := parseType(desc, pos, true)
	if err != nil {
		return "", err
	}
	if next != len(desc) {
		return "", fmt.Errorf("%w: %q: trailing characters after return type", ErrInvalidDescriptor, desc)
	}

	var sb strings.Builder
	sb.WriteString(ret)
	sb.WriteByte(' ')
	sb.WriteString(name)
	sb.WriteByte('(')
	sb.WriteString(strings.Join(args, ","))
	sb.WriteByte(')')
	return sb.String(), nil
}

// parseType reads one field type starting at pos and returns its Java name
// and the position right after it. void is only legal as a return type.
func parseType(desc string, pos int, isReturn bool) (string, int, error) {
	dims := 0
	for pos < len(desc) && desc[pos] == '[' {
		dims++
		pos++
	}
	if pos >= len(desc) {
		return "", pos, fmt.Errorf("%w: %q: truncated type", ErrInvalidDescriptor, desc)
	}

	var name string
	switch c := desc[pos]; c {
	case 'L':
		end := strings.IndexByte(desc[pos:], ';')
		if end <= 1 {
			return "", pos, fmt.Errorf("%w: %q: unterminated class type", ErrInvalidDescriptor, desc)
		}
		name = strings.ReplaceAll(desc[pos+1:pos+end], "/", ".")
		pos += end + 1
	case 'V':
		if !isReturn || dims > 0 {
			return "", pos, fmt.Errorf("%w: %q: void used as a value type", ErrInvalidDescriptor, desc)
		}
		name = "void"
		pos++
	default:
		prim, ok := primitives[c]
		if !ok {
			return "", pos, fmt.Errorf("%w: %q: unknown type code %q", ErrInvalidDescriptor, desc, c)
		}
		name = prim
		pos++
	}

	return name + strings.Repeat("[]", dims), pos, nil
}

var primitives = map[byte]string{
	'Z': "boolean",
	'B': "byte",
	'C': "char",
	'S': "short",
	'I': "int",
	'J': "long",
	'F': "float",
	'D': "double",
}
