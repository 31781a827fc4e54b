package checkpointer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// recorder records the filenames it was asked to save to
type recorder struct {
	saved []string
}

func (r *recorder) Save(filename string) error {
	r.saved = append(r.saved, filename)
	return nil
}

func TestEpisodicSchedule(t *testing.T) {
	rec := &recorder{}
	c := NewEpisodic(3, rec, Fixed("model.bin"))

	for episode := 1; episode <= 7; episode++ {
		require.NoError(t, c.Checkpoint(episode))
	}

	require.Equal(t, []string{"model.bin", "model.bin"}, rec.saved)
}

func TestForceSavesOffSchedule(t *testing.T) {
	rec := &recorder{}
	c := NewEpisodic(100, rec, Fixed("model.bin"))

	require.NoError(t, c.Checkpoint(1))
	require.Empty(t, rec.saved)

	require.NoError(t, c.Force())
	require.Equal(t, []string{"model.bin"}, rec.saved)
}

func TestEnumeratedFilenames(t *testing.T) {
	rec := &recorder{}
	c := NewEpisodic(1, rec, Enumerated("model", "bin"))

	require.NoError(t, c.Checkpoint(1))
	require.NoError(t, c.Checkpoint(2))
	require.Equal(t, []string{"model1.bin", "model2.bin"}, rec.saved)
}

func TestEpisodicRejectsBadInterval(t *testing.T) {
	require.Panics(t, func() {
		NewEpisodic(0, &recorder{}, Fixed("model.bin"))
	})
}
