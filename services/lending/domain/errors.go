package domain

import "errors"

// Sentinel errors for the lending domain. Use errors.Is() to check these.
//
// The first four are the System-level kinds; entity errors raised inside a
// multi-step System operation are wrapped under ErrCannotUpdate so callers can
// match either one.
var (
	// ErrAlreadyExists indicates a member or item collides with a stored one.
	ErrAlreadyExists = errors.New("already exists")

	// ErrDoesntExist indicates the referenced member, item or contract is not stored.
	ErrDoesntExist = errors.New("does not exist")

	// ErrCannotUpdate indicates a stored entity could not be replaced or settled.
	ErrCannotUpdate = errors.New("cannot update")

	// ErrCannotDelete indicates the entity to remove is not stored.
	ErrCannotDelete = errors.New("cannot delete")

	// ErrNegativeAmount is returned by credit mutations given a negative amount.
	ErrNegativeAmount = errors.New("negative amount")

	// ErrAlreadyUnderContract indicates the item's active contract has not expired yet.
	ErrAlreadyUnderContract = errors.New("item already under contract")

	// ErrContractOverlap indicates a contract window intersects one already in the item's history.
	ErrContractOverlap = errors.New("contract overlaps an existing contract")

	ErrInvalidContract = errors.New("invalid contract terms")
	ErrUnknownCategory = errors.New("unknown category")
	ErrInvalidMember   = errors.New("invalid member")
	ErrInvalidItem     = errors.New("invalid item")
)
