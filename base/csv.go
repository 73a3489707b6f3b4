// Copyright 2022 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package base

import (
	"bufio"
	"io"
	"strings"

	"github.com/juju/errors"
)

const maxLineSize = 16 * 1024 * 1024

// Escape text for csv.
func Escape(text string) string {
	// check if need escape
	if !strings.Contains(text, ",") &&
		!strings.Contains(text, "\"") &&
		!strings.Contains(text, "\n") &&
		!strings.Contains(text, "\r") {
		return text
	}
	builder := strings.Builder{}
	builder.WriteRune('"')
	for _, c := range text {
		if c == '"' {
			builder.WriteString("\"\"")
		} else {
			builder.WriteRune(c)
		}
	}
	builder.WriteRune('"')
	return builder.String()
}

// WriteLine writes escaped fields as one csv line.
func WriteLine(w io.Writer, fields ...string) error {
	builder := strings.Builder{}
	for i, field := range fields {
		if i > 0 {
			builder.WriteRune(',')
		}
		builder.WriteString(Escape(field))
	}
	builder.WriteString("\n")
	_, err := io.WriteString(w, builder.String())
	return errors.Trace(err)
}

// ReadLines parses fields of each line of a csv stream. Quoted fields may contain
// separators, escaped quotes and line breaks. Reading stops at the first handler error.
func ReadLines(r io.Reader, sep rune, handler func(int, []string) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	lineCount := 0               // line number of current position
	fields := make([]string, 0)  // fields for current line
	builder := strings.Builder{} // string builder for current field
	quoted := false              // whether current position in quote
	for sc.Scan() {
		line := []rune(strings.TrimSuffix(sc.Text(), "\r"))
		if quoted {
			builder.WriteString("\n")
		}
		for i := 0; i < len(line); i++ {
			switch {
			case line[i] == sep && !quoted:
				fields = append(fields, builder.String())
				builder.Reset()
			case line[i] == '"':
				if !quoted {
					quoted = true
				} else if i+1 < len(line) && line[i+1] == '"' {
					i++
					builder.WriteRune('"')
				} else {
					quoted = false
				}
			default:
				builder.WriteRune(line[i])
			}
		}
		if !quoted {
			fields = append(fields, builder.String())
			builder.Reset()
			if err := handler(lineCount, fields); err != nil {
				return err
			}
			fields = []string{}
			lineCount++
		}
	}
	if err := sc.Err(); err != nil {
		return errors.Trace(err)
	}
	if quoted {
		return errors.Errorf("unterminated quoted field at record %d", lineCount)
	}
	return nil
}
