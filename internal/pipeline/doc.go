// Package pipeline drives one media-generation run through its fixed stage
// sequence: profile load, speech synthesis, avatar validation, lip-sync
// render, final encode. The coordinator owns admission, load/unload
// pairing, artifact hand-off between stages, and scratch cleanup; the
// stage work itself happens in external tools behind the service clients.
package pipeline
