// Copyright (c) 2020 PrimeType, Inc.
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

package logging

import (
	"reflect"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// standard logger field names
const (
	PACKAGE = "pkg"
	TYPE    = "type"
	FUNC    = "func"
	SERVICE = "svc"
	EVENT   = "event"
	STATE   = "state"
	REASON  = "reason"
)

// Event is a structured log event name.
// Log events are documented constants, which makes the service logs greppable and stable.
type Event string

// Log tags the zerolog event with the event name
func (e Event) Log(evt *zerolog.Event) *zerolog.Event {
	return evt.Str(EVENT, string(e))
}

// Dict returns the event as a zerolog sub-dict, i.e., Dict(logging.EVENT, e.Dict())
func (e Event) Dict() *zerolog.Event {
	return zerolog.Dict().Str("name", string(e))
}

func (e Event) String() string { return string(e) }

// NewPackageLogger returns a new logger with pkg={pkg}
// where {pkg} is o's package path
// o must be a struct - the pattern is to use an empty struct
func NewPackageLogger(o interface{}) zerolog.Logger {
	t := reflect.TypeOf(o)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		panic("NewPackageLogger can only be created for a struct")
	}
	return log.With().Str(PACKAGE, t.PkgPath()).Logger()
}

// NewServiceLogger returns a new logger with pkg={pkg}, svc={svc}
func NewServiceLogger(o interface{}, svc string) zerolog.Logger {
	return NewPackageLogger(o).With().Str(SERVICE, svc).Logger()
}

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
}
