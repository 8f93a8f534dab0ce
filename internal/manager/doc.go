// Package manager is the control plane of the gateway: the model registry,
// per-model admission control and the stream relay. It is structured into
// small files by concern:
//
//   - manager.go: core Manager type, constructor, simple getters.
//   - config.go: ManagerConfig and package defaults; NewWithConfig applies defaults.
//   - types.go: states, snapshots, requests and outward TokenEvents.
//   - errors.go: error types and helpers (IsTooBusy, IsModelNotFound, ...).
//   - registry.go: Register, Lookup, List.
//   - unload.go: Unload and the drain-then-remove path.
//   - admission.go: Slot, Acquire and Release.
//   - relay.go: Relay, the bounded backend-to-client pump.
//   - inference.go: Generate and Complete, the request entry points.
//   - status_report.go: Status reporting for /status.
//   - events.go: lifecycle events and publishers.
//
// Backends:
//
//   - adapter_openai.go: OpenAI-compatible HTTP servers (openai, llama-server).
//     Streams are read as server-sent events and parsed with gjson.
//   - adapter_grpc.go: a server-streaming RPC with JSON messages, probed
//     through the standard gRPC health service.
//
// A model's active count is only changed through Acquire and Slot.Release,
// and never exceeds its max_concurrency.
package manager
