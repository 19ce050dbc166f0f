// Package taskgraph is a parallel task-graph executor with persistent
// result memoization. Clients register units of work (each a callable plus
// its arguments, optional input files, and optional declared output files)
// and declare dependencies among them. The executor resolves the resulting
// directed acyclic graph, schedules ready tasks onto a worker pool, and
// skips tasks whose inputs, outputs, and code identity match a persisted
// record from a prior run.
//
// The public surface is small by design: New builds a Graph from Options,
// (*Graph).AddTask submits work, and (*Graph).Close plus (*Graph).Join drain
// it. Everything else — the File Stat Probe, the Fingerprint Engine, the
// Executed-Task Store, the Ready Queue, and the logging sink — is an
// internal implementation detail reachable only through those four calls.
package taskgraph
