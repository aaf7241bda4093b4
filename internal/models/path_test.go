package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodePath(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	path := EncodePath([]uuid.UUID{a, b, c})
	assert.Equal(t, a.String()+"/"+b.String()+"/"+c.String(), path)

	decoded, err := DecodePath(path)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a, b, c}, decoded)
}

func TestEncodePathEmpty(t *testing.T) {
	assert.Equal(t, "", EncodePath(nil))

	decoded, err := DecodePath("")
	require.NoError(t, err)
	assert.Nil(t, decoded)
}

func TestDecodePathInvalidSegment(t *testing.T) {
	_, err := DecodePath("not-a-uuid")
	assert.Error(t, err)

	_, err = DecodePath(uuid.NewString() + "/garbage")
	assert.Error(t, err)
}

func TestPathContains(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	path := EncodePath([]uuid.UUID{a, b})

	assert.True(t, PathContains(path, a))
	assert.True(t, PathContains(path, b))
	assert.False(t, PathContains(path, uuid.New()))
	assert.False(t, PathContains("", a))
}

func TestQualificationMatches(t *testing.T) {
	pv, tv := 100.0, 500.0
	downline, tenure := 3, 6
	q := Qualification{
		MinPersonalVolume:      &pv,
		MinTeamVolume:          &tv,
		MinActiveDownline:      &downline,
		MinTenureMonths:        &tenure,
		RequiredCertifications: StringSlice{"aml"},
	}

	qualified := &Partner{
		PersonalVolume: 150,
		TeamVolume:     600,
		ActiveDownline: 4,
		TenureMonths:   12,
		Certifications: StringSlice{"aml", "product"},
	}
	assert.True(t, q.Matches(qualified))

	lowVolume := *qualified
	lowVolume.PersonalVolume = 50
	assert.False(t, q.Matches(&lowVolume))

	uncertified := *qualified
	uncertified.Certifications = StringSlice{"product"}
	assert.False(t, q.Matches(&uncertified))

	// An empty qualification matches everyone.
	assert.True(t, Qualification{}.Matches(&Partner{}))
}

func TestCommissionCapAppliesTo(t *testing.T) {
	two := 2
	levelCap := CommissionCap{Level: &two, MaxAmount: 100}
	assert.True(t, levelCap.AppliesTo(2))
	assert.False(t, levelCap.AppliesTo(1))

	globalCap := CommissionCap{MaxAmount: 100}
	assert.True(t, globalCap.AppliesTo(1))
	assert.True(t, globalCap.AppliesTo(7))
}

func TestSubscriptionActiveMonths(t *testing.T) {
	sub := Subscription{StartedAt: time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)}

	assert.Equal(t, 0, sub.ActiveMonths(time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 1, sub.ActiveMonths(time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 5, sub.ActiveMonths(time.Date(2026, 6, 20, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 0, sub.ActiveMonths(time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)))
}
