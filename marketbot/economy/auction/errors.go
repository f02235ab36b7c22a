package auction

import "errors"

var (
	ErrStaleBid        = errors.New("bid must exceed the current price")
	ErrAuctionExpired  = errors.New("auction time is over")
	ErrOwnerCannotBid  = errors.New("owner cannot bid on their own auction")
	ErrNotPublished    = errors.New("listing is not published")
	ErrNotOwner        = errors.New("only the owner can resolve this auction")
	ErrAlreadyResolved = errors.New("auction is already resolved")
	ErrNotFound        = errors.New("not found")
	ErrDeliveryFailed  = errors.New("notification delivery failed")

	ErrNotAuction           = errors.New("listing is not an auction")
	ErrNotParticipant       = errors.New("join the auction before bidding")
	ErrNotPending           = errors.New("listing is not pending")
	ErrAlreadyParticipating = errors.New("already participating in another auction")
	ErrInvalidDeadline      = errors.New("deadline must be in the future")
	ErrInvalidAmount        = errors.New("bid amount must be positive")
)
