// Package checkpointer implements periodic snapshotting of serializable
// objects during training
package checkpointer

// Serializable is an object that can snapshot itself to a file
type Serializable interface {
	Save(filename string) error
}

// Checkpointer snapshots a tracked object on an episode schedule.
// Force snapshots immediately, off schedule, e.g. when a run finishes.
type Checkpointer interface {
	Checkpoint(episode int) error
	Force() error
}
