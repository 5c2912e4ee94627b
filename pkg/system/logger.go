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

package system

import (
	"github.com/primetype/organix/pkg/logging"
)

type pkgobject struct{}

var logger = logging.NewPackageLogger(pkgobject{})

// system log events
const (
	LOG_EVENT_REGISTERED         logging.Event = "REGISTERED"
	LOG_EVENT_GRAPH_FROZEN       logging.Event = "GRAPH_FROZEN"
	LOG_EVENT_STATE_CHANGED      logging.Event = "STATE_CHANGED"
	LOG_EVENT_RUNNING            logging.Event = "RUNNING"
	LOG_EVENT_SERVICE_FAILURE    logging.Event = "SERVICE_FAILURE"
	LOG_EVENT_RESTARTING         logging.Event = "RESTARTING"
	LOG_EVENT_RESTART_DEFERRED   logging.Event = "RESTART_DEFERRED"
	LOG_EVENT_MAX_RETRIES        logging.Event = "MAX_RETRIES_EXCEEDED"
	LOG_EVENT_DEPENDENCY_FAILED  logging.Event = "DEPENDENCY_FAILED"
	LOG_EVENT_CRITICAL_FAILURE   logging.Event = "CRITICAL_FAILURE"
	LOG_EVENT_FORCED_STOP        logging.Event = "FORCED_STOP"
	LOG_EVENT_SHUTDOWN           logging.Event = "SHUTDOWN"
	LOG_EVENT_SHUTDOWN_COMPLETED logging.Event = "SHUTDOWN_COMPLETED"
)
