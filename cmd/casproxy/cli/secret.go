// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// SecretReader reads secrets from a terminal with echo disabled, or
// line by line from a pipe.
type SecretReader struct {
	input  *os.File
	prompt io.Writer
	lines  *bufio.Reader
}

// NewSecretReader reads from input and writes prompts to prompt.
func NewSecretReader(input *os.File, prompt io.Writer) *SecretReader {
	return &SecretReader{input: input, prompt: prompt}
}

// Read prompts with label and returns one secret with surrounding
// whitespace removed. An empty secret is a validation error.
func (r *SecretReader) Read(label string) (string, error) {
	descriptor := int(r.input.Fd())
	var value string
	if term.IsTerminal(descriptor) {
		fmt.Fprintf(r.prompt, "%s: ", label)
		data, err := term.ReadPassword(descriptor)
		fmt.Fprintln(r.prompt)
		if err != nil {
			return "", Internal("reading %s: %w", label, err)
		}
		value = string(data)
	} else {
		if r.lines == nil {
			r.lines = bufio.NewReader(r.input)
		}
		line, err := r.lines.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			return "", Validation("reading %s from stdin: %w", label, err)
		}
		value = line
	}

	value = strings.TrimSpace(value)
	if value == "" {
		return "", Validation("%s is empty", label)
	}
	return value, nil
}
