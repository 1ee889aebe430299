// Copyright 2025 gorse Project Authors
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
	"math"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
)

// Rating is an observed rating given by a user to an item.
type Rating struct {
	UserId int32
	ItemId int32
	Rating float64
}

// Dataset is an in-memory store of ratings. Ratings keep their insertion order and
// duplicated (user, item) pairs are kept as separate observations. Users and items
// are dense indices: the number of users is the maximum user id plus one.
type Dataset struct {
	ratings     []Rating
	userRatings [][]int32
	itemRatings [][]int32
}

func NewDataset(capacity int) *Dataset {
	return &Dataset{
		ratings: make([]Rating, 0, capacity),
	}
}

// Add appends a rating. Negative ids and non-finite ratings are rejected.
//
// The adjacency index has one slot per id up to the largest id seen, so memory
// grows with max(user id) + max(item id) rather than with the number of ratings.
// Ids must be dense: a single rating with id 2^31-2 allocates 2^31 slots.
func (d *Dataset) Add(userId, itemId int32, rating float64) error {
	if userId < 0 {
		return errors.NotValidf("user id %d", userId)
	}
	if itemId < 0 {
		return errors.NotValidf("item id %d", itemId)
	}
	if math.IsNaN(rating) || math.IsInf(rating, 0) {
		return errors.NotValidf("rating %v", rating)
	}
	position := int32(len(d.ratings))
	d.ratings = append(d.ratings, Rating{UserId: userId, ItemId: itemId, Rating: rating})
	for int(userId) >= len(d.userRatings) {
		d.userRatings = append(d.userRatings, nil)
	}
	for int(itemId) >= len(d.itemRatings) {
		d.itemRatings = append(d.itemRatings, nil)
	}
	d.userRatings[userId] = append(d.userRatings[userId], position)
	d.itemRatings[itemId] = append(d.itemRatings[itemId], position)
	return nil
}

// Count returns the number of ratings.
func (d *Dataset) Count() int {
	return len(d.ratings)
}

// CountUsers returns max(user id) + 1.
func (d *Dataset) CountUsers() int {
	return len(d.userRatings)
}

// CountItems returns max(item id) + 1.
func (d *Dataset) CountItems() int {
	return len(d.itemRatings)
}

func (d *Dataset) Get(i int) Rating {
	return d.ratings[i]
}

// GetRatings returns ratings in insertion order. The slice must not be modified.
func (d *Dataset) GetRatings() []Rating {
	return d.ratings
}

// GetUserRatings returns positions of ratings grouped by user.
func (d *Dataset) GetUserRatings() [][]int32 {
	return d.userRatings
}

// GetItemRatings returns positions of ratings grouped by item.
func (d *Dataset) GetItemRatings() [][]int32 {
	return d.itemRatings
}

type Stats struct {
	Ratings    int
	Users      int
	Items      int
	RatedUsers int
	RatedItems int
	Density    float64
}

// Stats summarizes the dataset. Density is the fraction of distinct (user, item)
// pairs observed over all users x items.
func (d *Dataset) Stats() Stats {
	type pair struct {
		userId int32
		itemId int32
	}
	pairs := mapset.NewThreadUnsafeSetWithSize[pair](len(d.ratings))
	ratedUsers := mapset.NewThreadUnsafeSet[int32]()
	ratedItems := mapset.NewThreadUnsafeSet[int32]()
	for _, r := range d.ratings {
		pairs.Add(pair{r.UserId, r.ItemId})
		ratedUsers.Add(r.UserId)
		ratedItems.Add(r.ItemId)
	}
	stats := Stats{
		Ratings:    len(d.ratings),
		Users:      d.CountUsers(),
		Items:      d.CountItems(),
		RatedUsers: ratedUsers.Cardinality(),
		RatedItems: ratedItems.Cardinality(),
	}
	if stats.Users > 0 && stats.Items > 0 {
		stats.Density = float64(pairs.Cardinality()) / float64(stats.Users) / float64(stats.Items)
	}
	return stats
}
