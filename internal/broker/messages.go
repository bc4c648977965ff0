package broker

// CreateGameRequest registers a game and its master on a relay
type CreateGameRequest struct {
	MasterToken string         `json:"master_token"`
	ClientID    string         `json:"client_id"`
	Alias       string         `json:"alias"`
	Options     map[string]any `json:"options"`
}

// AddClientRequest registers a joining player on a relay
type AddClientRequest struct {
	Token    string `json:"token"`
	ClientID string `json:"client_id"`
	Alias    string `json:"alias"`
}

// RemoveClientRequest removes a player from a relay
type RemoveClientRequest struct {
	Token    string `json:"token"`
	ClientID string `json:"client_id"`
}
