package rotation

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/crestlinelabs/waterline/pkg/events"
	"github.com/crestlinelabs/waterline/pkg/governance/signer"
	wltesting "github.com/crestlinelabs/waterline/utils/pkg/testing"
)

type testFixture struct {
	clock    *clockwork.FakeClock
	registry *signer.Registry
	workflow *Workflow
	pub      *events.Publisher
	signers  []string
}

func newTestFixture(t *testing.T) *testFixture {
	t.Helper()

	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	pub := events.NewPublisher()
	log := wltesting.NewLogger()

	registry, err := signer.NewRegistry(signer.Config{
		Logger:         log,
		Clock:          clock,
		Publisher:      pub,
		MinimumSigners: 2,
	}, nil)
	require.NoError(t, err)

	var ids []string
	for _, role := range []signer.Role{signer.RoleTreasury, signer.RoleCompliance, signer.RoleTrustee} {
		s, err := registry.Register(role, nil, 1, "ops")
		require.NoError(t, err)
		ids = append(ids, s.ID)
	}

	workflow, err := NewWorkflow(Config{
		Logger:            log,
		Clock:             clock,
		Publisher:         pub,
		Registry:          registry,
		NoticePeriodDays:  30,
		RequiredApprovals: 2,
	})
	require.NoError(t, err)

	return &testFixture{clock: clock, registry: registry, workflow: workflow, pub: pub, signers: ids}
}

func (f *testFixture) proposeAdd(t *testing.T) *Rotation {
	t.Helper()
	rot, err := f.workflow.Propose(ProposeParams{
		Type: TypeAdd,
		ProposedSigner: &ProposedSigner{
			Role:      signer.RoleTrustee,
			Addresses: []string{"rNEW1"},
			Weight:    1,
		},
		ProposedBy: f.signers[0],
	})
	require.NoError(t, err)
	return rot
}

func (f *testFixture) approve(t *testing.T, rotationID string) {
	t.Helper()
	_, err := f.workflow.Approve(rotationID, f.signers[0], "proposer")
	require.NoError(t, err)
	rot, err := f.workflow.Approve(rotationID, f.signers[1], "second")
	require.NoError(t, err)
	require.Equal(t, StatusApproved, rot.Status)
}

func TestWaterline_Rotation_Propose(t *testing.T) {
	t.Parallel()

	t.Run("sets the effective date a notice period out", func(t *testing.T) {
		t.Parallel()

		f := newTestFixture(t)
		rot := f.proposeAdd(t)
		require.Equal(t, StatusProposed, rot.Status)
		require.Equal(t, 30, rot.NoticePeriodDays)
		require.Equal(t, f.clock.Now().UTC().Add(30*24*time.Hour), rot.EffectiveDate)
	})

	t.Run("requires an active proposer", func(t *testing.T) {
		t.Parallel()

		f := newTestFixture(t)
		require.NoError(t, f.registry.Deactivate(f.signers[2], "ops"))

		_, err := f.workflow.Propose(ProposeParams{
			Type:           TypeRemove,
			RemoveSignerID: f.signers[1],
			ProposedBy:     f.signers[2],
		})
		require.ErrorIs(t, err, signer.ErrInactiveSigner)

		_, err = f.workflow.Propose(ProposeParams{
			Type:           TypeRemove,
			RemoveSignerID: f.signers[1],
			ProposedBy:     "missing",
		})
		require.ErrorIs(t, err, signer.ErrNotFound)
	})

	t.Run("remove and replace need an existing target", func(t *testing.T) {
		t.Parallel()

		f := newTestFixture(t)
		_, err := f.workflow.Propose(ProposeParams{
			Type:           TypeRemove,
			RemoveSignerID: "missing",
			ProposedBy:     f.signers[0],
		})
		require.ErrorIs(t, err, signer.ErrNotFound)
	})

	t.Run("add and replace need a proposed signer", func(t *testing.T) {
		t.Parallel()

		f := newTestFixture(t)
		_, err := f.workflow.Propose(ProposeParams{
			Type:       TypeAdd,
			ProposedBy: f.signers[0],
		})
		require.Error(t, err)

		_, err = f.workflow.Propose(ProposeParams{
			Type:           TypeReplace,
			RemoveSignerID: f.signers[2],
			ProposedBy:     f.signers[0],
		})
		require.Error(t, err)
	})
}

func TestWaterline_Rotation_Approve(t *testing.T) {
	t.Parallel()

	t.Run("moves to approved at the required count, proposer included", func(t *testing.T) {
		t.Parallel()

		f := newTestFixture(t)
		rot := f.proposeAdd(t)

		got, err := f.workflow.Approve(rot.ID, f.signers[0], "proposer votes too")
		require.NoError(t, err)
		require.Equal(t, StatusProposed, got.Status)

		got, err = f.workflow.Approve(rot.ID, f.signers[1], "")
		require.NoError(t, err)
		require.Equal(t, StatusApproved, got.Status)
		require.Len(t, got.Approvals, 2)
	})

	t.Run("one approval per signer", func(t *testing.T) {
		t.Parallel()

		f := newTestFixture(t)
		rot := f.proposeAdd(t)
		_, err := f.workflow.Approve(rot.ID, f.signers[0], "")
		require.NoError(t, err)
		_, err = f.workflow.Approve(rot.ID, f.signers[0], "again")
		require.ErrorIs(t, err, ErrDuplicateApproval)
	})

	t.Run("refuses approvals once resolved", func(t *testing.T) {
		t.Parallel()

		f := newTestFixture(t)
		rot := f.proposeAdd(t)
		f.approve(t, rot.ID)

		_, err := f.workflow.Approve(rot.ID, f.signers[2], "late")
		require.ErrorIs(t, err, ErrInvalidState)
	})
}

func TestWaterline_Rotation_Execute(t *testing.T) {
	t.Parallel()

	t.Run("enforces the notice period day by day", func(t *testing.T) {
		t.Parallel()

		f := newTestFixture(t)
		rot := f.proposeAdd(t)
		f.approve(t, rot.ID)

		// Day 29: still inside the notice window.
		f.clock.Advance(29 * 24 * time.Hour)
		_, err := f.workflow.Execute(rot.ID)
		require.ErrorIs(t, err, ErrNoticePeriodNotElapsed)

		// Day 30: effective.
		f.clock.Advance(24 * time.Hour)
		got, err := f.workflow.Execute(rot.ID)
		require.NoError(t, err)
		require.Equal(t, StatusExecuted, got.Status)
		require.Equal(t, 4, f.registry.ActiveCount())
	})

	t.Run("refuses execution before approval", func(t *testing.T) {
		t.Parallel()

		f := newTestFixture(t)
		rot := f.proposeAdd(t)
		f.clock.Advance(31 * 24 * time.Hour)

		_, err := f.workflow.Execute(rot.ID)
		require.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("remove deactivates the target", func(t *testing.T) {
		t.Parallel()

		f := newTestFixture(t)
		rot, err := f.workflow.Propose(ProposeParams{
			Type:           TypeRemove,
			RemoveSignerID: f.signers[2],
			ProposedBy:     f.signers[0],
		})
		require.NoError(t, err)
		f.approve(t, rot.ID)
		f.clock.Advance(30 * 24 * time.Hour)

		_, err = f.workflow.Execute(rot.ID)
		require.NoError(t, err)

		removed, err := f.registry.Get(f.signers[2])
		require.NoError(t, err)
		require.False(t, removed.Active)
		require.Equal(t, 2, f.registry.ActiveCount())
	})

	t.Run("replace registers the new signer before deactivating the old", func(t *testing.T) {
		t.Parallel()

		f := newTestFixture(t)
		// The registry floor is 2 and only 3 signers are active; a replace
		// must still succeed because registration happens first.
		require.NoError(t, f.registry.Deactivate(f.signers[2], "ops"))
		require.Equal(t, 2, f.registry.ActiveCount())

		rot, err := f.workflow.Propose(ProposeParams{
			Type:           TypeReplace,
			RemoveSignerID: f.signers[1],
			ProposedSigner: &ProposedSigner{Role: signer.RoleCompliance, Weight: 1},
			ProposedBy:     f.signers[0],
		})
		require.NoError(t, err)
		f.approve(t, rot.ID)
		f.clock.Advance(30 * 24 * time.Hour)

		_, err = f.workflow.Execute(rot.ID)
		require.NoError(t, err)
		require.Equal(t, 2, f.registry.ActiveCount())

		old, err := f.registry.Get(f.signers[1])
		require.NoError(t, err)
		require.False(t, old.Active)
	})

	t.Run("replace with an inactive target leaves the signer set untouched", func(t *testing.T) {
		t.Parallel()

		f := newTestFixture(t)
		rot, err := f.workflow.Propose(ProposeParams{
			Type:           TypeReplace,
			RemoveSignerID: f.signers[2],
			ProposedSigner: &ProposedSigner{Role: signer.RoleTrustee, Weight: 1},
			ProposedBy:     f.signers[0],
		})
		require.NoError(t, err)
		f.approve(t, rot.ID)

		// The target is deactivated out of band during the notice period.
		require.NoError(t, f.registry.Deactivate(f.signers[2], "ops"))
		require.Equal(t, 2, f.registry.ActiveCount())
		f.clock.Advance(30 * 24 * time.Hour)

		// Retrying must not accumulate replacement signers.
		for i := 0; i < 2; i++ {
			_, err = f.workflow.Execute(rot.ID)
			require.ErrorIs(t, err, signer.ErrInactiveSigner)
			require.Equal(t, 2, f.registry.ActiveCount())
		}

		got, err := f.workflow.Get(rot.ID)
		require.NoError(t, err)
		require.Equal(t, StatusApproved, got.Status)
	})

	t.Run("remove blocked by the floor leaves the signer set untouched", func(t *testing.T) {
		t.Parallel()

		f := newTestFixture(t)
		rot, err := f.workflow.Propose(ProposeParams{
			Type:           TypeRemove,
			RemoveSignerID: f.signers[2],
			ProposedBy:     f.signers[0],
		})
		require.NoError(t, err)
		f.approve(t, rot.ID)

		// A third deactivation during the notice period puts the set on the
		// floor, so the removal can no longer go through.
		require.NoError(t, f.registry.Deactivate(f.signers[1], "ops"))
		f.clock.Advance(30 * 24 * time.Hour)

		_, err = f.workflow.Execute(rot.ID)
		var insufficient *signer.InsufficientSignersError
		require.ErrorAs(t, err, &insufficient)
		require.Equal(t, 2, f.registry.ActiveCount())

		got, err := f.workflow.Get(rot.ID)
		require.NoError(t, err)
		require.Equal(t, StatusApproved, got.Status)

		target, err := f.registry.Get(f.signers[2])
		require.NoError(t, err)
		require.True(t, target.Active)
	})

	t.Run("registry observers may read the workflow mid-execution", func(t *testing.T) {
		t.Parallel()

		f := newTestFixture(t)
		rot := f.proposeAdd(t)
		f.approve(t, rot.ID)
		f.clock.Advance(30 * 24 * time.Hour)

		var observed []Status
		f.pub.Subscribe(func(e events.Event) {
			if e.Name != events.SignerRegistered {
				return
			}
			if got, err := f.workflow.Get(rot.ID); err == nil {
				observed = append(observed, got.Status)
			}
		})

		done := make(chan error, 1)
		go func() {
			_, err := f.workflow.Execute(rot.ID)
			done <- err
		}()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("execution blocked on its own observer")
		}

		// The registration event fires while the rotation is still in flight.
		require.Equal(t, []Status{StatusApproved}, observed)
	})

	t.Run("refuses a second execution", func(t *testing.T) {
		t.Parallel()

		f := newTestFixture(t)
		rot := f.proposeAdd(t)
		f.approve(t, rot.ID)
		f.clock.Advance(30 * 24 * time.Hour)

		_, err := f.workflow.Execute(rot.ID)
		require.NoError(t, err)
		_, err = f.workflow.Execute(rot.ID)
		require.ErrorIs(t, err, ErrInvalidState)
	})
}

func TestWaterline_Rotation_Events(t *testing.T) {
	t.Parallel()

	f := newTestFixture(t)
	var names []string
	f.pub.Subscribe(func(e events.Event) { names = append(names, e.Name) })

	rot := f.proposeAdd(t)
	f.approve(t, rot.ID)
	f.clock.Advance(30 * 24 * time.Hour)
	_, err := f.workflow.Execute(rot.ID)
	require.NoError(t, err)

	require.Equal(t, []string{
		events.RotationProposed,
		events.RotationApproved,
		events.SignerRegistered, // execution registers the proposed signer
		events.RotationExecuted,
	}, names)
}
