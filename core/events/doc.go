// Package events defines the typed events a pipeline emits to observers.
//
// Event kinds are grouped by stage:
//
//   - pipeline.*: lifecycle of the whole pipeline.
//   - capture.*: push-to-talk recording.
//   - transcript.*: transcription results, queued or dropped.
//   - plan.*: planner requests and their reply plus script.
//   - script.*: hardware execution, step by step.
//   - speech.*: spoken feedback.
//
// Events caused by one utterance share a CorrelationID, assigned when the
// capture starts (or when text is submitted directly).
package events
