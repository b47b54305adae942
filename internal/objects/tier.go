package objects

import (
	"fmt"
	"strconv"
	"strings"
)

// AccessTier is the level of sensitive-field visibility a user holds for a record.
// The stored integer values are part of the ledger format.
type AccessTier int

const (
	AccessTierNone  AccessTier = 0
	AccessTierEmail AccessTier = 1
	AccessTierPhone AccessTier = 2
	AccessTierBoth  AccessTier = 3
	AccessTierFull  AccessTier = 4
)

var accessTierNames = map[AccessTier]string{
	AccessTierNone:  "none",
	AccessTierEmail: "email",
	AccessTierPhone: "phone",
	AccessTierBoth:  "both",
	AccessTierFull:  "full",
}

func (t AccessTier) String() string {
	if name, ok := accessTierNames[t]; ok {
		return name
	}

	return fmt.Sprintf("AccessTier(%d)", int(t))
}

func (t AccessTier) Valid() bool {
	return t >= AccessTierNone && t <= AccessTierFull
}

// Rank orders tiers: None < Email, Phone < Both < Full.
// Email and Phone share a rank and are incomparable.
func (t AccessTier) Rank() int {
	switch t {
	case AccessTierEmail, AccessTierPhone:
		return 1
	case AccessTierBoth:
		return 2
	case AccessTierFull:
		return 3
	default:
		return 0
	}
}

func (t AccessTier) CanSeeEmail() bool {
	return t == AccessTierEmail || t == AccessTierBoth || t == AccessTierFull
}

func (t AccessTier) CanSeePhone() bool {
	return t == AccessTierPhone || t == AccessTierBoth || t == AccessTierFull
}

// MergeTier combines the stored tier with a requested one.
//
//	current=None            -> requested
//	{Email,Phone} mixed     -> Both
//	current=Both            -> Both
//	current=Full            -> Full
//	otherwise               -> requested
func MergeTier(current, requested AccessTier) AccessTier {
	switch {
	case current == AccessTierNone:
		return requested
	case current == AccessTierFull:
		return AccessTierFull
	case current == AccessTierBoth:
		return AccessTierBoth
	case current == AccessTierEmail && requested == AccessTierPhone,
		current == AccessTierPhone && requested == AccessTierEmail:
		return AccessTierBoth
	default:
		return requested
	}
}

// RaiseTier applies a bulk grant: requested replaces current unless current
// ranks higher. Full is absorbing and a mixed Email/Phone pair becomes Both.
//
// Unlike MergeTier, a requested Full always lands on Full.
func RaiseTier(current, requested AccessTier) AccessTier {
	switch {
	case current == AccessTierFull:
		return AccessTierFull
	case current.Rank() > requested.Rank():
		return current
	default:
		return MergeTier(current, requested)
	}
}

// ParseAccessTier accepts a tier name or its numeric value.
func ParseAccessTier(s string) (AccessTier, error) {
	s = strings.ToLower(strings.TrimSpace(s))

	for tier, name := range accessTierNames {
		if name == s {
			return tier, nil
		}
	}

	n, err := strconv.Atoi(s)
	if err == nil && AccessTier(n).Valid() {
		return AccessTier(n), nil
	}

	return AccessTierNone, fmt.Errorf("invalid access tier %q", s)
}
