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

// Package metrics centralizes prometheus metric registration for the runtime.
//
// Metrics are registered once against the package Registry and cached by fully
// qualified name, so that concurrently constructed systems share the same collectors.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the process-wide metrics registry.
// All runtime metrics are registered against it. Applications expose it however they
// see fit, e.g., via promhttp.HandlerFor(metrics.Registry, ...).
var Registry = prometheus.NewRegistry()

var (
	mutex sync.Mutex

	counterVecs = map[string]*prometheus.CounterVec{}
	gaugeVecs   = map[string]*prometheus.GaugeVec{}
)

// CounterFQName returns the metric's fully qualified name
func CounterFQName(opts *prometheus.CounterOpts) string {
	return prometheus.BuildFQName(opts.Namespace, opts.Subsystem, opts.Name)
}

// GaugeFQName returns the metric's fully qualified name
func GaugeFQName(opts *prometheus.GaugeOpts) string {
	return prometheus.BuildFQName(opts.Namespace, opts.Subsystem, opts.Name)
}

// GetOrMustRegisterCounterVec first checks if a CounterVec with the same fully
// qualified name is already registered, and returns the cached collector if so.
// Otherwise the CounterVec is registered and cached.
func GetOrMustRegisterCounterVec(opts *prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	mutex.Lock()
	defer mutex.Unlock()
	name := CounterFQName(opts)
	if counter := counterVecs[name]; counter != nil {
		return counter
	}
	counter := prometheus.NewCounterVec(*opts, labels)
	Registry.MustRegister(counter)
	counterVecs[name] = counter
	return counter
}

// GetOrMustRegisterGaugeVec first checks if a GaugeVec with the same fully qualified
// name is already registered, and returns the cached collector if so.
// Otherwise the GaugeVec is registered and cached.
func GetOrMustRegisterGaugeVec(opts *prometheus.GaugeOpts, labels []string) *prometheus.GaugeVec {
	mutex.Lock()
	defer mutex.Unlock()
	name := GaugeFQName(opts)
	if gauge := gaugeVecs[name]; gauge != nil {
		return gauge
	}
	gauge := prometheus.NewGaugeVec(*opts, labels)
	Registry.MustRegister(gauge)
	gaugeVecs[name] = gauge
	return gauge
}
