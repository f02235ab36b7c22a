package utils

import "time"

// Market Constants
const (
	NewUserBonus     = 100000 // Balance granted on first contact
	RegularPostPrice = 30000  // Fee for publishing a fixed-price listing
	AuctionPostPrice = 40000  // Fee for publishing an auction listing
	DefaultCurrency  = "so'm"
	MaxDraftMedia    = 10
)

// Auction Constants
const (
	DefaultAuctionMinutes = 60
	MinBidAmount          = 1
	MaxBidAmount          = 1_000_000_000_000
)

// AuctionDurations are the durations, in minutes, offered when creating an auction.
var AuctionDurations = []int{30, 60, 120, 180, 360, 720}

// Transaction Constants
const (
	DefaultTxTimeout     = 30 * time.Second        // Default transaction timeout
	SerializationRetries = 3                       // Retries of a serializable transaction
	SweepInterval        = 60 * time.Second        // Deadline sweep ticker interval
	DraftCleanupInterval = 5 * time.Minute         // Draft expiry ticker interval
	DraftTTL             = 24 * time.Hour          // Lifetime of an unsubmitted draft
	MediaDebounce        = 1500 * time.Millisecond // Quiet period before acknowledging media
	NotifyConcurrency    = 8                       // Parallel DMs per broadcast
	NotificationTimeout  = 5 * time.Second         // Per recipient delivery timeout
)
