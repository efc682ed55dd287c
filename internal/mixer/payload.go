package mixer

// ConnectionView is the connection config plus its resolved base address.
type ConnectionView struct {
	ConnectionConfig
	BaseURL string `json:"baseUrl"`
}

// StatePayload is everything an operator front-end renders.
type StatePayload struct {
	ViewModel
	Sync       SyncState      `json:"sync"`
	Policy     RefreshPolicy  `json:"refreshPolicy"`
	Connection ConnectionView `json:"connection"`
}

// NewStatePayload projects the reconciled state for presentation.
func NewStatePayload(st State, policy RefreshPolicy, conn ConnectionConfig) StatePayload {
	return StatePayload{
		ViewModel:  BuildViewModel(st.Snapshot),
		Sync:       st.Sync,
		Policy:     policy,
		Connection: ConnectionView{ConnectionConfig: conn, BaseURL: conn.BaseURL()},
	}
}
