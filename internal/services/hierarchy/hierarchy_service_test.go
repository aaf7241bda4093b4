package hierarchy

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uplinepay/backend/internal/models"
	"github.com/uplinepay/backend/internal/store"
)

func newTestService(t *testing.T, rules models.RuleSet) (*Service, *store.MemoryStore) {
	t.Helper()
	mem := store.NewMemoryStore()
	svc := NewService(mem, store.NewStaticRules(rules))
	return svc, mem
}

func defaultRules() models.RuleSet {
	return models.RuleSet{
		MaxHierarchyLevels: 10,
		AutoActivation:     true,
	}
}

func addPartner(t *testing.T, svc *Service, name string, sponsorID *uuid.UUID) *models.Partner {
	t.Helper()
	p, err := svc.AddPartner(context.Background(), NewPartnerInput{
		Name:  name,
		Email: name + "@example.com",
	}, sponsorID)
	require.NoError(t, err)
	return p
}

func TestAddPartnerRoot(t *testing.T) {
	svc, _ := newTestService(t, defaultRules())

	root := addPartner(t, svc, "root", nil)

	assert.Equal(t, 1, root.Level)
	assert.Equal(t, "", root.Path)
	assert.Nil(t, root.SponsorID)
	assert.Equal(t, models.PartnerStatusActive, root.Status)
	assert.NotEmpty(t, root.ReferralCode)
}

func TestAddPartnerWithoutAutoActivation(t *testing.T) {
	rules := defaultRules()
	rules.AutoActivation = false
	svc, _ := newTestService(t, rules)

	root := addPartner(t, svc, "root", nil)

	assert.Equal(t, models.PartnerStatusPending, root.Status)
}

func TestAddPartnerUnderSponsor(t *testing.T) {
	svc, mem := newTestService(t, defaultRules())
	ctx := context.Background()

	root := addPartner(t, svc, "root", nil)
	child := addPartner(t, svc, "child", &root.ID)
	grand := addPartner(t, svc, "grand", &child.ID)

	assert.Equal(t, 2, child.Level)
	assert.Equal(t, root.ID.String(), child.Path)
	assert.Equal(t, 3, grand.Level)
	assert.Equal(t, root.ID.String()+"/"+child.ID.String(), grand.Path)

	// Sponsor counters: root has one direct referral but two downline.
	rootRow, err := mem.Get(ctx, root.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, rootRow.DirectReferrals)
	assert.Equal(t, 2, rootRow.TotalDownline)
	assert.Equal(t, 2, rootRow.ActiveDownline)

	childRow, err := mem.Get(ctx, child.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, childRow.DirectReferrals)
	assert.Equal(t, 1, childRow.TotalDownline)
}

func TestAddPartnerRejectsUnknownSponsor(t *testing.T) {
	svc, _ := newTestService(t, defaultRules())

	missing := uuid.New()
	_, err := svc.AddPartner(context.Background(), NewPartnerInput{Name: "p", Email: "p@example.com"}, &missing)
	assert.ErrorIs(t, err, ErrInvalidSponsor)
}

func TestAddPartnerRejectsInactiveSponsor(t *testing.T) {
	svc, mem := newTestService(t, defaultRules())
	ctx := context.Background()

	root := addPartner(t, svc, "root", nil)
	root.Status = models.PartnerStatusSuspended
	require.NoError(t, mem.Save(ctx, root))

	_, err := svc.AddPartner(ctx, NewPartnerInput{Name: "p", Email: "p@example.com"}, &root.ID)
	assert.ErrorIs(t, err, ErrInvalidSponsor)
}

func TestAddPartnerDepthLimit(t *testing.T) {
	rules := defaultRules()
	rules.MaxHierarchyLevels = 2
	svc, _ := newTestService(t, rules)

	root := addPartner(t, svc, "root", nil)
	child := addPartner(t, svc, "child", &root.ID)

	_, err := svc.AddPartner(context.Background(), NewPartnerInput{Name: "grand", Email: "g@example.com"}, &child.ID)
	assert.ErrorIs(t, err, ErrDepthExceeded)
}

func TestGetUplineRootFirst(t *testing.T) {
	svc, _ := newTestService(t, defaultRules())

	a := addPartner(t, svc, "a", nil)
	b := addPartner(t, svc, "b", &a.ID)
	c := addPartner(t, svc, "c", &b.ID)

	upline, err := svc.GetUpline(context.Background(), c.ID)
	require.NoError(t, err)
	require.Len(t, upline, 2)
	assert.Equal(t, a.ID, upline[0].ID)
	assert.Equal(t, b.ID, upline[1].ID)

	ordered := SponsorFirst(upline)
	assert.Equal(t, b.ID, ordered[0].ID)
	assert.Equal(t, a.ID, ordered[1].ID)
}

func TestGetUplineEmptyForRoot(t *testing.T) {
	svc, _ := newTestService(t, defaultRules())

	root := addPartner(t, svc, "root", nil)
	upline, err := svc.GetUpline(context.Background(), root.ID)
	require.NoError(t, err)
	assert.Empty(t, upline)
}

func TestGetDownlineFilters(t *testing.T) {
	svc, mem := newTestService(t, defaultRules())
	ctx := context.Background()

	root := addPartner(t, svc, "root", nil)
	child := addPartner(t, svc, "child", &root.ID)
	grand := addPartner(t, svc, "grand", &child.ID)

	grand.Status = models.PartnerStatusInactive
	require.NoError(t, mem.Save(ctx, grand))

	all, err := svc.GetDownline(ctx, root.ID, 0, false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, child.ID, all[0].ID)
	assert.Equal(t, grand.ID, all[1].ID)

	oneLevel, err := svc.GetDownline(ctx, root.ID, 1, false)
	require.NoError(t, err)
	require.Len(t, oneLevel, 1)
	assert.Equal(t, child.ID, oneLevel[0].ID)

	activeOnly, err := svc.GetDownline(ctx, root.ID, 0, true)
	require.NoError(t, err)
	require.Len(t, activeOnly, 1)
	assert.Equal(t, child.ID, activeOnly[0].ID)
}

func TestUpdateMetricsPropagatesTeamVolume(t *testing.T) {
	svc, mem := newTestService(t, defaultRules())
	ctx := context.Background()

	root := addPartner(t, svc, "root", nil)
	child := addPartner(t, svc, "child", &root.ID)

	tv := 500.0
	_, err := svc.UpdateMetrics(ctx, child.ID, MetricsUpdate{TeamVolume: &tv})
	require.NoError(t, err)

	rootRow, err := mem.Get(ctx, root.ID)
	require.NoError(t, err)
	assert.InDelta(t, 500.0, rootRow.TeamVolume, 0.001)

	// Shrinking the team volume pushes a negative delta up the chain.
	tv = 200.0
	_, err = svc.UpdateMetrics(ctx, child.ID, MetricsUpdate{TeamVolume: &tv})
	require.NoError(t, err)

	rootRow, err = mem.Get(ctx, root.ID)
	require.NoError(t, err)
	assert.InDelta(t, 200.0, rootRow.TeamVolume, 0.001)
}

func TestRecordSale(t *testing.T) {
	svc, mem := newTestService(t, defaultRules())
	ctx := context.Background()

	root := addPartner(t, svc, "root", nil)
	child := addPartner(t, svc, "child", &root.ID)
	grand := addPartner(t, svc, "grand", &child.ID)

	require.NoError(t, svc.RecordSale(ctx, grand.ID, 150.0))

	grandRow, err := mem.Get(ctx, grand.ID)
	require.NoError(t, err)
	assert.InDelta(t, 150.0, grandRow.PersonalVolume, 0.001)
	assert.InDelta(t, 150.0, grandRow.MonthlyVolume, 0.001)
	assert.InDelta(t, 0.0, grandRow.TeamVolume, 0.001)

	for _, id := range []uuid.UUID{root.ID, child.ID} {
		row, err := mem.Get(ctx, id)
		require.NoError(t, err)
		assert.InDelta(t, 150.0, row.TeamVolume, 0.001)
	}

	assert.Error(t, svc.RecordSale(ctx, grand.ID, -1))
}

func TestMovePartnerRejectsCycles(t *testing.T) {
	svc, mem := newTestService(t, defaultRules())
	ctx := context.Background()

	a := addPartner(t, svc, "a", nil)
	b := addPartner(t, svc, "b", &a.ID)
	c := addPartner(t, svc, "c", &b.ID)

	assert.ErrorIs(t, svc.MovePartner(ctx, a.ID, a.ID), ErrSelfCycle)
	assert.ErrorIs(t, svc.MovePartner(ctx, a.ID, c.ID), ErrSelfCycle)

	// A rejected move leaves the graph untouched.
	aRow, err := mem.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "", aRow.Path)
	assert.Equal(t, 1, aRow.Level)
	cRow, err := mem.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID.String()+"/"+b.ID.String(), cRow.Path)
}

func TestMovePartnerDepthLimit(t *testing.T) {
	rules := defaultRules()
	rules.MaxHierarchyLevels = 2
	svc, _ := newTestService(t, rules)
	ctx := context.Background()

	a := addPartner(t, svc, "a", nil)
	b := addPartner(t, svc, "b", &a.ID)
	c := addPartner(t, svc, "c", nil)

	// c would land at level 3 under b.
	assert.ErrorIs(t, svc.MovePartner(ctx, c.ID, b.ID), ErrDepthExceeded)
}

func TestMovePartnerDepthLimitCountsDescendants(t *testing.T) {
	rules := defaultRules()
	rules.MaxHierarchyLevels = 3
	svc, mem := newTestService(t, rules)
	ctx := context.Background()

	root := addPartner(t, svc, "root", nil)
	mid := addPartner(t, svc, "mid", &root.ID)
	parent := addPartner(t, svc, "parent", nil)
	child := addPartner(t, svc, "child", &parent.ID)

	// parent fits at level 3, but child would land at level 4.
	assert.ErrorIs(t, svc.MovePartner(ctx, parent.ID, mid.ID), ErrDepthExceeded)

	parentRow, err := mem.Get(ctx, parent.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, parentRow.Level)
	assert.Nil(t, parentRow.SponsorID)
	childRow, err := mem.Get(ctx, child.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, childRow.Level)

	// A childless partner still fits at the last level.
	leaf := addPartner(t, svc, "leaf", nil)
	require.NoError(t, svc.MovePartner(ctx, leaf.ID, mid.ID))
	leafRow, err := mem.Get(ctx, leaf.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, leafRow.Level)
}

func TestMovePartnerRewritesSubtree(t *testing.T) {
	svc, mem := newTestService(t, defaultRules())
	ctx := context.Background()

	oldRoot := addPartner(t, svc, "old-root", nil)
	moved := addPartner(t, svc, "moved", &oldRoot.ID)
	leaf := addPartner(t, svc, "leaf", &moved.ID)
	newRoot := addPartner(t, svc, "new-root", nil)

	require.NoError(t, svc.RecordSale(ctx, leaf.ID, 100.0))

	require.NoError(t, svc.MovePartner(ctx, moved.ID, newRoot.ID))

	movedRow, err := mem.Get(ctx, moved.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, movedRow.Level)
	assert.Equal(t, newRoot.ID.String(), movedRow.Path)
	require.NotNil(t, movedRow.SponsorID)
	assert.Equal(t, newRoot.ID, *movedRow.SponsorID)

	leafRow, err := mem.Get(ctx, leaf.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, leafRow.Level)
	assert.Equal(t, newRoot.ID.String()+"/"+moved.ID.String(), leafRow.Path)

	// Old chain settled, new chain credited.
	oldRow, err := mem.Get(ctx, oldRoot.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, oldRow.TotalDownline)
	assert.Equal(t, 0, oldRow.ActiveDownline)
	assert.Equal(t, 0, oldRow.DirectReferrals)
	assert.InDelta(t, 0.0, oldRow.TeamVolume, 0.001)

	newRow, err := mem.Get(ctx, newRoot.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, newRow.TotalDownline)
	assert.Equal(t, 2, newRow.ActiveDownline)
	assert.Equal(t, 1, newRow.DirectReferrals)
	assert.InDelta(t, 100.0, newRow.TeamVolume, 0.001)
}

func TestDeactivatePartner(t *testing.T) {
	svc, mem := newTestService(t, defaultRules())
	ctx := context.Background()

	root := addPartner(t, svc, "root", nil)
	mid := addPartner(t, svc, "mid", &root.ID)
	leaf := addPartner(t, svc, "leaf", &mid.ID)

	require.NoError(t, svc.DeactivatePartner(ctx, mid.ID, "compliance violation", true))

	midRow, err := mem.Get(ctx, mid.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PartnerStatusInactive, midRow.Status)
	assert.Equal(t, "compliance violation", midRow.DeactivationReason)

	// leaf was redistributed to root.
	leafRow, err := mem.Get(ctx, leaf.ID)
	require.NoError(t, err)
	require.NotNil(t, leafRow.SponsorID)
	assert.Equal(t, root.ID, *leafRow.SponsorID)
	assert.Equal(t, 2, leafRow.Level)
	assert.Equal(t, root.ID.String(), leafRow.Path)

	rootRow, err := mem.Get(ctx, root.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, rootRow.TotalDownline)
	assert.Equal(t, 1, rootRow.ActiveDownline)
	assert.Equal(t, 2, rootRow.DirectReferrals)
}

func TestDeactivateRootPromotesChildren(t *testing.T) {
	svc, mem := newTestService(t, defaultRules())
	ctx := context.Background()

	root := addPartner(t, svc, "root", nil)
	child := addPartner(t, svc, "child", &root.ID)

	require.NoError(t, svc.DeactivatePartner(ctx, root.ID, "left program", true))

	childRow, err := mem.Get(ctx, child.ID)
	require.NoError(t, err)
	assert.Nil(t, childRow.SponsorID)
	assert.Equal(t, 1, childRow.Level)
	assert.Equal(t, "", childRow.Path)
}

func TestDeactivateWithoutRedistribution(t *testing.T) {
	svc, mem := newTestService(t, defaultRules())
	ctx := context.Background()

	root := addPartner(t, svc, "root", nil)
	child := addPartner(t, svc, "child", &root.ID)

	require.NoError(t, svc.DeactivatePartner(ctx, root.ID, "paused", false))

	childRow, err := mem.Get(ctx, child.ID)
	require.NoError(t, err)
	require.NotNil(t, childRow.SponsorID)
	assert.Equal(t, root.ID, *childRow.SponsorID)
}

func TestValidateHierarchy(t *testing.T) {
	svc, mem := newTestService(t, defaultRules())
	ctx := context.Background()

	root := addPartner(t, svc, "root", nil)
	child := addPartner(t, svc, "child", &root.ID)

	report, err := svc.ValidateHierarchy(ctx)
	require.NoError(t, err)
	assert.True(t, report.Valid())
	assert.Equal(t, 2, report.Partners)

	// Corrupt the child row: level no longer matches its path length.
	child.Level = 5
	require.NoError(t, mem.Save(ctx, child))

	report, err = svc.ValidateHierarchy(ctx)
	require.NoError(t, err)
	assert.False(t, report.Valid())
	require.NotEmpty(t, report.Errors)
	assert.Equal(t, child.ID, report.Errors[0].PartnerID)
}

func TestValidateHierarchyDetectsSponsorCycle(t *testing.T) {
	svc, mem := newTestService(t, defaultRules())
	ctx := context.Background()

	a := addPartner(t, svc, "a", nil)
	b := addPartner(t, svc, "b", &a.ID)

	// Manually wire a's sponsor back to b.
	a.SponsorID = &b.ID
	a.Level = 3
	a.Path = b.ID.String()
	require.NoError(t, mem.Save(ctx, a))

	report, err := svc.ValidateHierarchy(ctx)
	require.NoError(t, err)
	assert.False(t, report.Valid())
}

func TestAddPartnerConcurrent(t *testing.T) {
	svc, mem := newTestService(t, defaultRules())
	ctx := context.Background()

	root := addPartner(t, svc, "root", nil)

	const n = 20
	done := make(chan error, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			_, err := svc.AddPartner(ctx, NewPartnerInput{
				Name:  "p",
				Email: uuid.NewString() + "@example.com",
			}, &root.ID)
			done <- err
		}(i)
	}
	for i := 0; i < n; i++ {
		require.NoError(t, <-done)
	}

	rootRow, err := mem.Get(ctx, root.ID)
	require.NoError(t, err)
	assert.Equal(t, n, rootRow.DirectReferrals)
	assert.Equal(t, n, rootRow.TotalDownline)
}

func TestServiceClockInjection(t *testing.T) {
	svc, _ := newTestService(t, defaultRules())
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	p := addPartner(t, svc, "p", nil)
	assert.Equal(t, fixed, p.JoinedAt)
}
