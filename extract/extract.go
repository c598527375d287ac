// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package extract turns uploaded files into plain text.
//
// Uploads are checked against an extension allow-list and a size ceiling
// before any bytes are parsed. Each allowed extension maps to a reader in a
// dispatch table.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/poiesic/ragbook/core"
)

// DefaultMaxUploadSize is the upload ceiling used when none is configured.
const DefaultMaxUploadSize int64 = 10 << 20

var (
	// ErrUnsupportedType indicates an extension outside the allow-list.
	ErrUnsupportedType = errors.New("file type not allowed")

	// ErrTooLarge indicates an upload above the size ceiling.
	ErrTooLarge = errors.New("file exceeds maximum upload size")

	// ErrNoText indicates a file from which no text could be extracted.
	ErrNoText = errors.New("no text could be extracted from the file")

	// ErrUnreadable indicates a file the reader could not parse.
	ErrUnreadable = errors.New("file could not be read")
)

// Reader converts raw file bytes to text.
type Reader func(data []byte) (string, error)

var readers = map[string]Reader{
	".txt": Text,
	".pdf": PDF,
}

// DefaultAllowedExtensions lists every extension with a reader.
func DefaultAllowedExtensions() []string {
	exts := make([]string, 0, len(readers))
	for ext := range readers {
		exts = append(exts, ext)
	}
	slices.Sort(exts)
	return exts
}

// Policy restricts which uploads are accepted.
type Policy struct {
	AllowedExtensions []string
	MaxSize           int64
}

// DefaultPolicy accepts .pdf and .txt files up to 10 MiB.
func DefaultPolicy() Policy {
	return Policy{
		AllowedExtensions: DefaultAllowedExtensions(),
		MaxSize:           DefaultMaxUploadSize,
	}
}

// Extension returns the lower-cased extension of filename including the dot.
func Extension(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

// Check validates filename and size and returns the normalized extension.
func (p Policy) Check(filename string, size int64) (string, error) {
	ext := Extension(filename)
	allowed := slices.ContainsFunc(p.AllowedExtensions, func(a string) bool {
		return strings.EqualFold(a, ext)
	})
	if _, ok := readers[ext]; !ok || !allowed {
		return "", core.Invalid(fmt.Errorf("%w: %q (allowed: %s)", ErrUnsupportedType, ext,
			strings.Join(p.AllowedExtensions, ", ")))
	}
	if p.MaxSize > 0 && size > p.MaxSize {
		return "", core.Invalid(fmt.Errorf("%w of %d bytes", ErrTooLarge, p.MaxSize))
	}
	return ext, nil
}

// Extract checks the upload against the policy and returns its trimmed text.
func (p Policy) Extract(filename string, data []byte) (string, error) {
	ext, err := p.Check(filename, int64(len(data)))
	if err != nil {
		return "", err
	}
	text, err := readers[ext](data)
	if err != nil {
		return "", core.Invalid(fmt.Errorf("%w: %w", ErrUnreadable, err))
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", core.Invalid(ErrNoText)
	}
	return text, nil
}

// Text decodes UTF-8 text, dropping a leading byte order mark.
func Text(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		return "", errors.New("text is not valid UTF-8")
	}
	return string(data), nil
}

// PDF concatenates the plain text of every page. Pages that fail to decode
// are skipped.
func PDF(data []byte) (text string, err error) {
	// The pdf package panics on some malformed input.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to create PDF reader: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(content)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}
