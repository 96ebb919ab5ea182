// Package storage holds the sinks the commands write to: JSONL files on disk
// and, under postgres/, a relational store.
package storage

import "tickscope/internal/model"

// LogSink receives raw log batches from the indexer.
type LogSink interface {
	PutLogBatch(logs []model.LogRecord) error
}

// FindingSink receives audit findings.
type FindingSink interface {
	PutFindings(findings []model.AuditFinding) error
}
