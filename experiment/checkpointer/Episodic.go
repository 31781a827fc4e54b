package checkpointer

// episodic implements checkpointing every interval episodes
type episodic struct {
	interval int
	object   Serializable

	// filename returns the filename to snapshot the object into. Use
	// Fixed to overwrite one file on every checkpoint, or Enumerated to
	// keep each snapshot in its own numbered file.
	filename func() string
}

// NewEpisodic returns a Checkpointer that snapshots object every
// interval episodes
func NewEpisodic(interval int, object Serializable,
	filename func() string) Checkpointer {
	if interval < 1 {
		panic("newepisodic: interval must be > 0")
	}
	return &episodic{
		interval: interval,
		object:   object,
		filename: filename,
	}
}

// Checkpoint snapshots the tracked object if the episode falls on the
// checkpointer's schedule
func (e *episodic) Checkpoint(episode int) error {
	if episode%e.interval == 0 {
		return e.Force()
	}
	return nil
}

// Force snapshots the tracked object immediately
func (e *episodic) Force() error {
	return e.object.Save(e.filename())
}
