// Package state holds the daemon's root aggregate and its persistence.
package state

import (
	"context"

	"github.com/HrushiBorhade/pingme/pkg/models"
)

// DaemonState is everything the daemon knows: sessions, queued instructions,
// call history and the single active call. It is persisted as one JSON document.
type DaemonState struct {
	Sessions         map[string]*models.Session `json:"sessions"`
	InstructionQueue []models.QueuedInstruction `json:"instruction_queue"`
	CallHistory      []models.CallRecord        `json:"call_history"`
	LastCallTime     *int64                     `json:"last_call_time"` // epoch ms
	ActiveCall       *models.ActiveCall         `json:"active_call"`
}

// New returns an empty state.
func New() *DaemonState {
	return &DaemonState{
		Sessions:         map[string]*models.Session{},
		InstructionQueue: []models.QueuedInstruction{},
		CallHistory:      []models.CallRecord{},
	}
}

// normalize fills fields a partial or older document left nil.
func (s *DaemonState) normalize() *DaemonState {
	if s == nil {
		return New()
	}
	if s.Sessions == nil {
		s.Sessions = map[string]*models.Session{}
	}
	for id, sess := range s.Sessions {
		if sess == nil {
			delete(s.Sessions, id)
			continue
		}
		if sess.RecentEvents == nil {
			sess.RecentEvents = []models.EventRecord{}
		}
	}
	if s.InstructionQueue == nil {
		s.InstructionQueue = []models.QueuedInstruction{}
	}
	if s.CallHistory == nil {
		s.CallHistory = []models.CallRecord{}
	}
	if s.ActiveCall != nil && s.ActiveCall.EventsDuringCall == nil {
		s.ActiveCall.EventsDuringCall = []models.EventRecord{}
	}
	return s
}

// Clone returns a deep copy safe to read or serialize without holding the state lock.
func (s *DaemonState) Clone() *DaemonState {
	if s == nil {
		return New()
	}
	out := &DaemonState{
		Sessions:         make(map[string]*models.Session, len(s.Sessions)),
		InstructionQueue: append([]models.QueuedInstruction{}, s.InstructionQueue...),
		CallHistory:      append([]models.CallRecord{}, s.CallHistory...),
	}
	for id, sess := range s.Sessions {
		out.Sessions[id] = CloneSession(sess)
	}
	if s.LastCallTime != nil {
		out.LastCallTime = models.Ptr(*s.LastCallTime)
	}
	if s.ActiveCall != nil {
		ac := *s.ActiveCall
		ac.EventsDuringCall = append([]models.EventRecord{}, s.ActiveCall.EventsDuringCall...)
		out.ActiveCall = &ac
	}
	return out
}

// CloneSession deep-copies a session (history and pending action included).
func CloneSession(sess *models.Session) *models.Session {
	if sess == nil {
		return nil
	}
	c := *sess
	c.RecentEvents = append([]models.EventRecord{}, sess.RecentEvents...)
	if sess.PendingAction != nil {
		pa := *sess.PendingAction
		pa.Options = append([]string(nil), sess.PendingAction.Options...)
		c.PendingAction = &pa
	}
	return &c
}

// UndeliveredCount returns the number of instructions still waiting.
func (s *DaemonState) UndeliveredCount() int {
	n := 0
	for _, q := range s.InstructionQueue {
		if !q.Delivered {
			n++
		}
	}
	return n
}

// Store persists DaemonState. Load never fails on missing data: implementations
// return New() when nothing has been saved yet.
type Store interface {
	Load(ctx context.Context) (*DaemonState, error)
	Save(ctx context.Context, st *DaemonState) error
	Close() error
}
