// Package literal turns PEM text into C/C++ string literal declarations that
// can be pasted into device firmware.
package literal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"regexp"
	"strings"
)

// DefaultName is the variable name used when none is given.
const DefaultName = "root_ca"

// rawDelimiter terminates raw string literals emitted by Raw.
const rawDelimiter = "EOF"

var (
	// ErrInvalidInput reports an unusable variable name or raw text that
	// would terminate its own literal.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound reports a path that does not name a readable file.
	ErrNotFound = errors.New("file not found")
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SourceLiteral is a declaration of the form
//
//	const char* name =
//	    "line\n"
//	    ;
//
// Lines hold the already quoted and escaped literals.
type SourceLiteral struct {
	Name  string
	Lines []string
}

// String renders the declaration.
func (s *SourceLiteral) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "const char* %s =\n", s.Name)
	for _, line := range s.Lines {
		b.WriteString("    ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteString("    ;\n")
	return b.String()
}

// WriteTo writes the rendered declaration to w.
func (s *SourceLiteral) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, s.String())
	return int64(n), err
}

// Emit converts lines into a declaration named name. Trailing CR/LF is
// stripped from every line and lines that end up empty are dropped; the
// rest keep their order.
func Emit(lines []string, name string) (*SourceLiteral, error) {
	name, err := checkName(name)
	if err != nil {
		return nil, err
	}

	out := &SourceLiteral{Name: name}
	for _, line := range lines {
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}
		out.Lines = append(out.Lines, Quote(line+"\n"))
	}
	return out, nil
}

// EmitReader reads r line by line and emits the declaration. Nothing is
// returned unless the whole input was read.
func EmitReader(r io.Reader, name string) (*SourceLiteral, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return Emit(lines, name)
}

// EmitFile emits the declaration for the file at path. Quotes and spaces
// around path, as left by drag-and-drop into a terminal, are removed.
func EmitFile(path, name string) (*SourceLiteral, error) {
	path = CleanPath(path)
	if path == "" {
		return nil, fmt.Errorf("%w: no file provided", ErrNotFound)
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrNotFound, path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrNotFound, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotFound, path, err)
	}
	defer f.Close() //nolint:errcheck

	return EmitReader(f, name)
}

// CleanPath strips surrounding whitespace and quote characters from path.
func CleanPath(path string) string {
	return strings.Trim(strings.TrimSpace(path), `'" `)
}

// Raw renders text as a C++ raw string literal:
//
//	const char* name = R"EOF(text)EOF";
func Raw(text, name string) (string, error) {
	name, err := checkName(name)
	if err != nil {
		return "", err
	}
	if strings.Contains(text, ")"+rawDelimiter+`"`) {
		return "", fmt.Errorf("%w: text contains the raw literal terminator", ErrInvalidInput)
	}
	return fmt.Sprintf("const char* %s = R\"%s(%s)%s\";\n", name, rawDelimiter, text, rawDelimiter), nil
}

func checkName(name string) (string, error) {
	if name == "" {
		return DefaultName, nil
	}
	if !identifier.MatchString(name) {
		return "", fmt.Errorf("%w: %q is not a valid identifier", ErrInvalidInput, name)
	}
	return name, nil
}
