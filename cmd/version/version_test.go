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

package version

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildInfo(t *testing.T) {
	info := BuildInfo()
	assert.True(t, strings.Contains(info, Version))
	assert.True(t, strings.Contains(info, runtime.Version()))
	assert.Len(t, strings.Split(strings.TrimSpace(info), "\n"), 5)

	GitCommit = "abc123"
	defer func() { GitCommit = "unknown-commit" }()
	assert.Equal(t, "abc123", commit())
}
