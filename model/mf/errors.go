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

package mf

import "github.com/juju/errors"

const (
	// ErrEmptyInput is returned when metrics are requested over zero ratings.
	ErrEmptyInput = errors.ConstError("empty input")
	// ErrNumerical is returned when a least squares system is singular or ill-conditioned.
	ErrNumerical = errors.ConstError("numerical error")
	// ErrIndexOutOfRange is returned when a rating references a row missing from a factor matrix.
	ErrIndexOutOfRange = errors.ConstError("index out of range")
)
