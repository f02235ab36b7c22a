package auction

import (
	"context"
	"time"
)

// Identity is an external messaging identity with its display metadata.
type Identity struct {
	ID          string
	Username    string
	DisplayName string
}

func (i Identity) Name() string {
	if i.DisplayName != "" {
		return i.DisplayName
	}
	if i.Username != "" {
		return i.Username
	}
	return i.ID
}

type ControlKind string

const (
	ControlJoin  ControlKind = "join"
	ControlLeave ControlKind = "leave"
	ControlSell  ControlKind = "sell"
	ControlEnd   ControlKind = "end"
)

// Control is an action offered next to a message, rendered as a button by the transport.
type Control struct {
	Kind      ControlKind
	Label     string
	ListingID int64
	BidID     int64
}

type Message struct {
	Title    string
	Text     string
	Controls []Control
}

// View is the public, channel-wide representation of a listing.
type View struct {
	Title    string
	Text     string
	ImageURL string
	Color    int
	Controls []Control
}

// Messenger delivers private notifications and keeps the public listing view in sync.
type Messenger interface {
	Notify(ctx context.Context, userID string, msg Message) error
	SendPublicView(ctx context.Context, view View) (string, error)
	UpdatePublicView(ctx context.Context, viewRef string, view View) error
}

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}
