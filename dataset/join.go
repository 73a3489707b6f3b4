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

package dataset

import (
	"github.com/juju/errors"
)

const (
	ErrMissingUser = errors.ConstError("review refers to unknown user")
	ErrMissingItem = errors.ConstError("review refers to unknown business")
)

// Join attaches user and business attributes to every review. The result keeps the order
// of reviews. Review columns come first, then user columns, then business columns; a name
// that already exists keeps its earlier value. A review whose user or business is unknown
// fails the join, unless dropMissing is set, in which case it is skipped and counted.
func Join(reviews, users, items *Frame, dropMissing bool) (joined *Frame, dropped int, err error) {
	userIndex, err := users.Index(UserKey)
	if err != nil {
		return nil, 0, errors.Trace(err)
	}
	itemIndex, err := items.Index(ItemKey)
	if err != nil {
		return nil, 0, errors.Trace(err)
	}
	userIds, err := reviews.Strings(UserKey)
	if err != nil {
		return nil, 0, errors.Trace(err)
	}
	itemIds, err := reviews.Strings(ItemKey)
	if err != nil {
		return nil, 0, errors.Trace(err)
	}

	joined = NewFrame(reviews.Columns()...)
	for _, name := range users.Columns() {
		joined.addColumn(name)
	}
	for _, name := range items.Columns() {
		joined.addColumn(name)
	}
	for i := 0; i < reviews.Len(); i++ {
		u, ok := userIndex[userIds[i]]
		if !ok {
			if dropMissing {
				dropped++
				continue
			}
			return nil, 0, errors.Annotatef(ErrMissingUser, "row %d: %s = %s", i, UserKey, userIds[i])
		}
		v, ok := itemIndex[itemIds[i]]
		if !ok {
			if dropMissing {
				dropped++
				continue
			}
			return nil, 0, errors.Annotatef(ErrMissingItem, "row %d: %s = %s", i, ItemKey, itemIds[i])
		}
		row := items.Row(v)
		for name, value := range users.Row(u) {
			row[name] = value
		}
		for name, value := range reviews.Row(i) {
			row[name] = value
		}
		joined.Append(row)
	}
	return joined, dropped, nil
}
