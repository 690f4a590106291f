package session

import (
	"sort"
	"time"
)

// Health is the detailed status of one session, for the admin surface.
type Health struct {
	SessionID        string    `json:"session_id"`
	Status           string    `json:"status"` // active, expired, not_found
	OwnerID          string    `json:"owner_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	LastActiveAt     time.Time `json:"last_active_at"`
	AliveMinutes     int       `json:"alive_minutes"`
	InactiveMinutes  int       `json:"inactive_minutes"`
	TimeoutMinutes   int       `json:"timeout_minutes"`
	ExpiresInMinutes int       `json:"expires_in_minutes"`
}

// Health reports the session's age, inactivity, and time to expiry. Unknown
// IDs yield status "not_found", never an error.
func (m *Manager) Health(id string) Health {
	sess := m.registry.Get(id)
	if sess == nil {
		return Health{SessionID: id, Status: "not_found"}
	}

	now := m.now()
	inactive := sess.IdleFor(now)

	status := "active"
	if inactive > m.timeout {
		status = "expired"
	}

	expiresIn := m.timeout - inactive
	if expiresIn < 0 {
		expiresIn = 0
	}

	return Health{
		SessionID:        id,
		Status:           status,
		OwnerID:          sess.OwnerID,
		CreatedAt:        sess.CreatedAt,
		LastActiveAt:     sess.LastActiveAt,
		AliveMinutes:     int(now.Sub(sess.CreatedAt).Minutes()),
		InactiveMinutes:  int(inactive.Minutes()),
		TimeoutMinutes:   int(m.timeout.Minutes()),
		ExpiresInMinutes: int(expiresIn.Minutes()),
	}
}

// SessionBrief is one row of the registry overview.
type SessionBrief struct {
	SessionID       string    `json:"session_id"`
	OwnerID         string    `json:"owner_id"`
	OwnerName       string    `json:"owner_name,omitempty"`
	AliveMinutes    int       `json:"alive_minutes"`
	InactiveMinutes int       `json:"inactive_minutes"`
	LastActiveAt    time.Time `json:"last_active_at"`
}

// Overview summarizes the registry for operators.
type Overview struct {
	TotalSessions  int            `json:"total_sessions"`
	TimeoutMinutes int            `json:"timeout_minutes"`
	Sessions       []SessionBrief `json:"sessions"`
}

// Overview lists every active session, longest-idle first.
func (m *Manager) Overview() Overview {
	now := m.now()
	snapshot := m.registry.Snapshot()

	briefs := make([]SessionBrief, 0, len(snapshot))
	for _, sess := range snapshot {
		briefs = append(briefs, SessionBrief{
			SessionID:       sess.ID,
			OwnerID:         sess.OwnerID,
			OwnerName:       sess.OwnerName,
			AliveMinutes:    int(now.Sub(sess.CreatedAt).Minutes()),
			InactiveMinutes: int(sess.IdleFor(now).Minutes()),
			LastActiveAt:    sess.LastActiveAt,
		})
	}
	sort.Slice(briefs, func(i, j int) bool {
		return briefs[i].InactiveMinutes > briefs[j].InactiveMinutes
	})

	return Overview{
		TotalSessions:  len(briefs),
		TimeoutMinutes: int(m.timeout.Minutes()),
		Sessions:       briefs,
	}
}
