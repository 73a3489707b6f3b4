// Copyright 2024 gorse Project Authors
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

package feature

import (
	"github.com/gorse-io/deepwide/dataset"
)

const UnknownToken = "unk"

// Vocabulary maps the most frequent tokens to indices 1..K. Index 0 is reserved for
// unknown tokens.
type Vocabulary struct {
	tokens []string
	index  map[string]int
}

// NewVocabulary keeps the k most frequent tokens. Ties are broken by first encounter.
func NewVocabulary(tokens []string, k int) *Vocabulary {
	dict := dataset.NewFreqDict()
	for _, token := range tokens {
		dict.Add(token)
	}
	v := &Vocabulary{
		tokens: []string{UnknownToken},
		index:  make(map[string]int),
	}
	for _, id := range dict.TopK(k) {
		token, _ := dict.String(id)
		v.index[token] = len(v.tokens)
		v.tokens = append(v.tokens, token)
	}
	return v
}

// Len returns the number of slots including the unknown slot.
func (v *Vocabulary) Len() int {
	return len(v.tokens)
}

// Index returns the slot of a token, or 0 if the token is unknown.
func (v *Vocabulary) Index(token string) int {
	return v.index[token]
}

// Contains reports whether a token has its own slot.
func (v *Vocabulary) Contains(token string) bool {
	_, ok := v.index[token]
	return ok
}

func (v *Vocabulary) Token(index int) (string, bool) {
	if index < 0 || index >= len(v.tokens) {
		return "", false
	}
	return v.tokens[index], true
}
