// Package recording captures sprite frames in memory and replays them.
//
// A Recorder is a sprite.FrameSubmitter that keeps a copy of every batch,
// its commands and its vertices instead of talking to a GPU. Recordings
// can be inspected in tests or played back into another submitter later.
//
//	rec := recording.NewRecorder(recording.WithKeep(4))
//	r := sprite.NewRenderer(sprite.WithSubmitter(rec))
//	...
//	r.Frame()
//	last := rec.Last()
//	err := last.Playback(gpuSubmitter)
//
// # Submitter Registration
//
// Submitters can be registered by name, following the database/sql driver
// pattern, so tools can pick one from a flag:
//
//	sub, err := recording.NewSubmitter("recorder")
//
// The "recorder" and "discard" submitters are always registered.
package recording
