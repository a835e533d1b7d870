// Package services implements the ingestion core: change detection,
// the processing pipeline, vector-store reconciliation, and the
// orchestrator that coordinates them under the run lock.
package services
