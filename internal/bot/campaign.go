package bot

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"ledgerbot/internal/session"
	"ledgerbot/internal/supervisor"
)

// Campaign holds the state of one connection campaign: the resolved mode,
// the supervisor's latest progress, and counters surfaced on /api/status.
type Campaign struct {
	ID        string
	Mode      session.Mode
	StartedAt time.Time

	mu            sync.Mutex
	state         supervisor.State
	attempt       int
	maxAttempts   int
	contactsAdded int
	dispatches    int
	lastDispatch  time.Time
	lastError     string
}

func newCampaign(mode session.Mode, now time.Time) *Campaign {
	return &Campaign{
		ID:        uuid.NewString(),
		Mode:      mode,
		StartedAt: now,
		state:     supervisor.StateIdle,
	}
}

func (c *Campaign) observe(st supervisor.Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st.State != "" {
		c.state = st.State
	}
	if st.Attempt > 0 {
		c.attempt = st.Attempt
	}
	if st.MaxAttempts > 0 {
		c.maxAttempts = st.MaxAttempts
	}
	if st.Err != nil {
		c.lastError = st.Err.Error()
	}
}

func (c *Campaign) contactAdded() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.contactsAdded++
}

func (c *Campaign) dispatched(at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dispatches++
	c.lastDispatch = at
}

func (c *Campaign) failed(err error) {
	if err == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastError = err.Error()
}

// Snapshot is the JSON body of /api/status.
type Snapshot struct {
	CampaignID       string     `json:"campaignId,omitempty"`
	Mode             string     `json:"mode,omitempty"`
	State            string     `json:"state"`
	Attempt          int        `json:"attempt,omitempty"`
	MaxAttempts      int        `json:"maxAttempts,omitempty"`
	StartedAt        *time.Time `json:"startedAt,omitempty"`
	ContactsAdded    int        `json:"contactsAdded"`
	Dispatches       int        `json:"dispatches"`
	LastDispatch     *time.Time `json:"lastDispatch,omitempty"`
	LastError        string     `json:"lastError,omitempty"`
	FrontEndAttached bool       `json:"frontEndAttached"`
	LedgerPath       string     `json:"ledgerPath"`
}

func (c *Campaign) snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	started := c.StartedAt
	snap := Snapshot{
		CampaignID:    c.ID,
		Mode:          c.Mode.String(),
		State:         string(c.state),
		Attempt:       c.attempt,
		MaxAttempts:   c.maxAttempts,
		StartedAt:     &started,
		ContactsAdded: c.contactsAdded,
		Dispatches:    c.dispatches,
		LastError:     c.lastError,
	}
	if !c.lastDispatch.IsZero() {
		last := c.lastDispatch
		snap.LastDispatch = &last
	}
	return snap
}
