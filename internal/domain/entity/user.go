package entity

// User is the authenticated session identity. It is minted once at
// authentication time and never mutated for the session's lifetime.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Token string `json:"token"`
}

// OnlineUser is the presence projection of a remote user. The full set is
// replaced wholesale on every presence snapshot from the server.
type OnlineUser struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
