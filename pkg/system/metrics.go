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
	"github.com/primetype/organix/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// metric namespaces
const (
	MetricsNamespace = "organix"
	MetricsSubsystem = "system"
)

var (
	stateTransitionCounter = metrics.GetOrMustRegisterCounterVec(
		&prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "state_transitions_total",
			Help:      "Service lifecycle state transitions",
		},
		[]string{"svc", "state"},
	)

	restartCounter = metrics.GetOrMustRegisterCounterVec(
		&prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "restarts_total",
			Help:      "Supervised service restarts",
		},
		[]string{"svc"},
	)

	forcedStopCounter = metrics.GetOrMustRegisterCounterVec(
		&prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "forced_stops_total",
			Help:      "Execution units forcibly terminated on stop timeout",
		},
		[]string{"svc"},
	)

	mailboxDepthGauge = metrics.GetOrMustRegisterGaugeVec(
		&prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "mailbox_depth",
			Help:      "Number of envelopes queued in the service mailbox",
		},
		[]string{"svc"},
	)
)
