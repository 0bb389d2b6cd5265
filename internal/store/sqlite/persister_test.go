package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venueops/internal/intake"
	"venueops/internal/model"
	"venueops/internal/store"
)

func TestLoadEmptyDatabase(t *testing.T) {
	p, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	defer p.Close()

	_, ok, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "venueops.db")

	p, err := Open(ctx, path)
	require.NoError(t, err)

	s := store.New(store.WithPersister(p))
	require.NoError(t, s.Load(ctx))
	require.NoError(t, s.RunInTransaction(ctx, func(tx *store.Tx) error {
		if _, err := tx.AddRoom(model.Room{ID: "r-1201", RoomNumber: "1201", Type: "The Sanctuary", IsVipRoom: true}); err != nil {
			return err
		}
		_, err := tx.AddSignal(model.CrossDomainSignal{
			ID:      "sig-nova",
			Type:    model.SignalArtistBooking,
			Payload: model.SignalPayload{ArtistName: "Nova", EventDate: "2026-08-09"},
		})
		return err
	}))
	wf := intake.NewWorkflow(intake.Config{}, s.NewID)
	_, err = s.CommitSignal(ctx, wf, "sig-nova", "r-1201", "14:00")
	require.NoError(t, err)
	require.NoError(t, p.Close())

	p2, err := Open(ctx, path)
	require.NoError(t, err)
	defer p2.Close()

	restored := store.New(store.WithPersister(p2))
	require.NoError(t, restored.Load(ctx))
	assert.Equal(t, s.Snapshot(), restored.Snapshot())
	assert.Zero(t, restored.PendingCount())

	// The duplicate guard holds across restarts.
	_, err = restored.CommitSignal(ctx, wf, "sig-nova", "r-1201", "14:00")
	assert.Error(t, err)
	assert.Len(t, restored.Snapshot().Bookings, 1)
}
