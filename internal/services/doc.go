// Package services provides shared error classification and context
// plumbing for pipeline stage implementations and the job worker.
package services
