// Package control
// Author: momentics <momentics@gmail.com>
//
// Hot-reload, runtime metrics, configuration control, and debug introspection layer.
// Consumed by the io-wait core's ioloop package to expose wait-loop activity
// alongside the rest of a process's control plane.
//
// Provides concurrent-safe state handling primitives including:
//   - Immutable snapshot config reads and atomic updates
//   - Runtime observers for hot-reload
//   - Metrics telemetry contracts
//   - State export, debug hooks, and probe registration
//
// This package is build-tag-partitioned as needed; RegisterPlatformProbes is
// defined only for Linux and Windows builds.
package control
