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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarshal(t *testing.T) {
	data, err := Marshal(map[string]any{"a": 1})
	assert.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(data))

	var v map[string]any
	assert.NoError(t, Unmarshal(data, &v))
	assert.Equal(t, map[string]any{"a": float64(1)}, v)
	assert.NoError(t, Unmarshal(nil, &v))
	assert.Nil(t, v)
}

func readObjects(t *testing.T, text string) []map[string]any {
	var objects []map[string]any
	err := ReadObjects(strings.NewReader(text), func(object map[string]any) error {
		objects = append(objects, object)
		return nil
	})
	assert.NoError(t, err)
	return objects
}

func TestReadObjects(t *testing.T) {
	expected := []map[string]any{
		{"id": "a", "stars": 4.5},
		{"id": "b", "stars": nil},
	}
	assert.Equal(t, expected, readObjects(t, `  [{"id": "a", "stars": 4.5}, {"id": "b", "stars": null}]`))
	assert.Equal(t, expected, readObjects(t, "{\"id\": \"a\", \"stars\": 4.5}\n{\"id\": \"b\", \"stars\": null}\n"))
	assert.Empty(t, readObjects(t, " \n"))

	err := ReadObjects(strings.NewReader(`{"id": `), func(map[string]any) error { return nil })
	assert.Error(t, err)
}
