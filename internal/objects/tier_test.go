package objects

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var allTiers = []AccessTier{AccessTierNone, AccessTierEmail, AccessTierPhone, AccessTierBoth, AccessTierFull}

func TestMergeTier_Table(t *testing.T) {
	N, E, P, B, F := AccessTierNone, AccessTierEmail, AccessTierPhone, AccessTierBoth, AccessTierFull

	// expected[current][requested]
	expected := map[AccessTier]map[AccessTier]AccessTier{
		N: {N: N, E: E, P: P, B: B, F: F},
		E: {N: N, E: E, P: B, B: B, F: F},
		P: {N: N, E: B, P: P, B: B, F: F},
		B: {N: B, E: B, P: B, B: B, F: B},
		F: {N: F, E: F, P: F, B: F, F: F},
	}

	for _, current := range allTiers {
		for _, requested := range allTiers {
			require.Equal(t, expected[current][requested], MergeTier(current, requested),
				"merge(%s, %s)", current, requested)
		}
	}
}

func TestMergeTier_AbsorbingElements(t *testing.T) {
	for _, requested := range allTiers {
		require.Equal(t, AccessTierFull, MergeTier(AccessTierFull, requested))
		require.Equal(t, AccessTierBoth, MergeTier(AccessTierBoth, requested))
	}
}

func TestMergeTier_MonotonicForNonNoneRequests(t *testing.T) {
	requests := []AccessTier{AccessTierEmail, AccessTierPhone, AccessTierBoth, AccessTierFull}

	for _, current := range allTiers {
		for _, requested := range requests {
			merged := MergeTier(current, requested)
			require.GreaterOrEqual(t, merged.Rank(), current.Rank(),
				"merge(%s, %s) = %s lowered the tier", current, requested, merged)
		}
	}
}

func TestRaiseTier_Table(t *testing.T) {
	N, E, P, B, F := AccessTierNone, AccessTierEmail, AccessTierPhone, AccessTierBoth, AccessTierFull

	// expected[current][requested], requested None is never passed by callers.
	expected := map[AccessTier]map[AccessTier]AccessTier{
		N: {E: E, P: P, B: B, F: F},
		E: {E: E, P: B, B: B, F: F},
		P: {E: B, P: P, B: B, F: F},
		B: {E: B, P: B, B: B, F: F},
		F: {E: F, P: F, B: F, F: F},
	}

	for current, row := range expected {
		for requested, want := range row {
			require.Equal(t, want, RaiseTier(current, requested), "raise(%s, %s)", current, requested)
		}
	}
}

func TestRaiseTier_FullAlwaysLandsOnFull(t *testing.T) {
	for _, current := range allTiers {
		require.Equal(t, AccessTierFull, RaiseTier(current, AccessTierFull), "raise(%s, full)", current)
	}
}

func TestAccessTier_Visibility(t *testing.T) {
	cases := []struct {
		tier  AccessTier
		email bool
		phone bool
	}{
		{AccessTierNone, false, false},
		{AccessTierEmail, true, false},
		{AccessTierPhone, false, true},
		{AccessTierBoth, true, true},
		{AccessTierFull, true, true},
	}

	for _, tc := range cases {
		t.Run(tc.tier.String(), func(t *testing.T) {
			require.Equal(t, tc.email, tc.tier.CanSeeEmail())
			require.Equal(t, tc.phone, tc.tier.CanSeePhone())
		})
	}
}

func TestParseAccessTier(t *testing.T) {
	tier, err := ParseAccessTier("Email")
	require.NoError(t, err)
	require.Equal(t, AccessTierEmail, tier)

	tier, err = ParseAccessTier("4")
	require.NoError(t, err)
	require.Equal(t, AccessTierFull, tier)

	_, err = ParseAccessTier("7")
	require.Error(t, err)

	_, err = ParseAccessTier("everything")
	require.Error(t, err)
}

func TestMaskRecord(t *testing.T) {
	r := Record{ID: 42, Name: "Ada", Email: "ada@example.com", Phone: "+1 555 0100"}

	masked := MaskRecord(r, AccessTierNone)
	require.Nil(t, masked.Email)
	require.Nil(t, masked.Phone)

	masked = MaskRecord(r, AccessTierEmail)
	require.Equal(t, "ada@example.com", *masked.Email)
	require.Nil(t, masked.Phone)

	masked = MaskRecord(r, AccessTierBoth)
	require.Equal(t, "ada@example.com", *masked.Email)
	require.Equal(t, "+1 555 0100", *masked.Phone)
	require.Equal(t, AccessTierBoth, masked.AccessTier)
}
