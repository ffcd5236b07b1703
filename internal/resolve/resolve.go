// Package resolve turns a raw input value into the set of lookup
// keys for one run.
package resolve

import (
	"bufio"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Source says where the keys came from.
type Source string

const (
	SourceLiteral Source = "literal"
	SourceList    Source = "list"
)

// Result is the resolved, de-duplicated key set.
type Result struct {
	Keys   []string
	Source Source
	// Path is set for list sources.
	Path string
	// Lines counts the non-empty lines read before de-duplication.
	Lines int
}

// Empty reports whether resolution produced no keys at all.
func (r Result) Empty() bool {
	return len(r.Keys) == 0
}

// Error is returned when an existing list source cannot be read.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return "resolve: read " + e.Path + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Resolve interprets input as a path to a newline-separated key list when
// something exists at that path, and as a single literal key otherwise.
func Resolve(input string) (Result, error) {
	if input != "" {
		if _, err := os.Stat(input); err == nil {
			return readList(input)
		}
	}

	key := strings.TrimSpace(input)
	if key == "" {
		return Result{Source: SourceLiteral}, nil
	}
	return Result{Keys: []string{key}, Source: SourceLiteral, Lines: 1}, nil
}

func readList(path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, &Error{Path: path, Err: eris.Wrap(err, "open list")}
	}
	defer f.Close()

	// Lists exported on Windows are often UTF-16 with a BOM; strip or decode it.
	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	scanner := bufio.NewScanner(transform.NewReader(f, dec))

	res := Result{Source: SourceList, Path: path}
	seen := make(map[string]struct{})
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		res.Lines++
		if _, dup := seen[line]; dup {
			continue
		}
		seen[line] = struct{}{}
		res.Keys = append(res.Keys, line)
	}
	if err := scanner.Err(); err != nil {
		return Result{}, &Error{Path: path, Err: eris.Wrap(err, "scan list")}
	}
	return res, nil
}
