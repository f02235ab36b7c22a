package config

import "time"

// UI and Display Constants
const (
	// Pagination
	BidsPerPage     = 10
	DefaultPageSize = 10
	MaxChoices      = 25

	// Colors
	ErrorColor      = 0xFF0000
	SuccessColor    = 0x00FF00
	InfoColor       = 0x0099FF
	WarningColor    = 0xFFAA00
	BackgroundColor = 0x2B2D31
	SoldColor       = 0xE91E63
)

// Database and Performance Constants
const (
	DefaultQueryTimeout = 30 * time.Second
	AutocompleteTimeout = 2 * time.Second
	CommandTimeout      = 10 * time.Second
	ShutdownTimeout     = 10 * time.Second
)
