package model

// PlayerID uniquely identifies a player device. It is generated once on the
// device and survives re-registration.
type PlayerID string

// BankPlayer is the bank's record of a registered player
type BankPlayer struct {
	ID      PlayerID `json:"id"`
	Name    string   `json:"name"`
	Color   string   `json:"color"`
	Balance int64    `json:"balance"`
}

// PlayerProfile is the player device's own identity and starting balance
type PlayerProfile struct {
	ID             PlayerID `json:"id"`
	Name           string   `json:"name"`
	Color          string   `json:"color"`
	InitialBalance int64    `json:"initial_balance"`
}
