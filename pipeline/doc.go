// Package pipeline is a general-purpose dataflow pipeline runtime.
//
// A pipeline is a directed acyclic graph of typed nodes — sources,
// transforms, sinks, joins and aggregates — executed as a streaming
// computation with backpressure, resilience and observability hooks.
// The package owns four coupled subsystems:
//
//   - the graph model and validator (Graph, GraphBuilder, Validator)
//   - the execution scheduler (Strategy and its sequential/batching/
//     unbatching/merge/resilient/fan-out implementations)
//   - the resilience core (retry delay strategies, CircuitBreaker and
//     CircuitBreakerManager, the capped replayable pipe)
//   - the lineage adapter layer (Packet, LineageAdapter)
//
// Concrete node implementations (database/queue/object-store connectors),
// dependency-injection glue, tracing exporter backends and CLI wrappers are
// external collaborators; pipeline only specifies the interface contracts
// they must satisfy (see contracts.go and storage.go). The connectors
// package ships reference implementations of those contracts.
//
// # Quick start
//
//	b := pipeline.NewGraphBuilder()
//	b.AddNode(pipeline.NodeDescriptor{ID: "src", Kind: pipeline.KindSource})
//	b.AddNode(pipeline.NodeDescriptor{ID: "double", Kind: pipeline.KindTransform, Cardinality: pipeline.OneToOne})
//	b.AddNode(pipeline.NodeDescriptor{ID: "sink", Kind: pipeline.KindSink})
//	b.AddEdge(pipeline.Edge{From: "src", To: "double"})
//	b.AddEdge(pipeline.Edge{From: "double", To: "sink"})
//	g, err := b.Build(pipeline.ValidationError)
package pipeline
