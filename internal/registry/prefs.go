package registry

import (
	"sync"

	"github.com/Musab74/OnAir-backend/internal/language"
)

// PreferenceStore keeps each participant's subtitle language per meeting. A
// preference survives the participant's reconnects within the same meeting;
// it is only dropped when the meeting itself is torn down.
type PreferenceStore struct {
	mu    sync.RWMutex
	prefs map[string]map[string]string // meetingID -> participantID -> language
}

func NewPreferenceStore() *PreferenceStore {
	return &PreferenceStore{prefs: make(map[string]map[string]string)}
}

// Set stores a normalized language preference.
func (p *PreferenceStore) Set(meetingID, participantID, lang string) {
	normalized := language.Normalize(lang)
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.prefs[meetingID]
	if !ok {
		m = make(map[string]string)
		p.prefs[meetingID] = m
	}
	m[participantID] = normalized
}

// Get returns the stored preference, defaulting to the primary language.
func (p *PreferenceStore) Get(meetingID, participantID string) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if m, ok := p.prefs[meetingID]; ok {
		if lang, ok := m[participantID]; ok {
			return lang
		}
	}
	return language.Primary
}

// Snapshot copies a meeting's preference map for one broadcast operation.
func (p *PreferenceStore) Snapshot(meetingID string) map[string]string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	m := p.prefs[meetingID]
	out := make(map[string]string, len(m))
	for id, lang := range m {
		out[id] = lang
	}
	return out
}

// DropMeeting removes every preference stored for a meeting.
func (p *PreferenceStore) DropMeeting(meetingID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.prefs, meetingID)
}
