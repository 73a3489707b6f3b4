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

package json

import (
	"bufio"
	"io"
	"unicode"

	"github.com/goccy/go-json"
	"github.com/juju/errors"
)

// Marshal returns the JSON encoding of v.
func Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal parses the JSON-encoded data and stores the result
// in the value pointed to by v. If data is empty, Unmarshal clears
// contents in v.
func Unmarshal(data []byte, v interface{}) error {
	if len(data) == 0 {
		data = []byte("null")
	}
	return json.Unmarshal(data, v)
}

// ReadObjects decodes JSON objects from a stream holding either one array of objects or
// a sequence of objects (JSON lines). The handler is called for each object in order.
func ReadObjects(r io.Reader, handler func(map[string]any) error) error {
	reader := bufio.NewReader(r)
	// peek the first non-space character
	var first rune
	for {
		c, _, err := reader.ReadRune()
		if err == io.EOF {
			return nil
		} else if err != nil {
			return errors.Trace(err)
		}
		if !unicode.IsSpace(c) {
			first = c
			if err = reader.UnreadRune(); err != nil {
				return errors.Trace(err)
			}
			break
		}
	}

	decoder := json.NewDecoder(reader)
	if first == '[' {
		var objects []map[string]any
		if err := decoder.Decode(&objects); err != nil {
			return errors.Trace(err)
		}
		for _, object := range objects {
			if err := handler(object); err != nil {
				return err
			}
		}
		return nil
	}
	for {
		var object map[string]any
		if err := decoder.Decode(&object); err == io.EOF {
			return nil
		} else if err != nil {
			return errors.Trace(err)
		}
		if err := handler(object); err != nil {
			return err
		}
	}
}
