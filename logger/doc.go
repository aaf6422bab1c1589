// Package logger provides structured logging for the pipeline engine,
// built on zerolog. Loggers are tagged per component (orchestrator,
// executor, checkpoint, ...) and per run, so every line of a pipeline
// run can be correlated by run_id.
package logger
