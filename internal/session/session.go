package session

import (
	"strings"
	"sync"
)

// FallbackProject is used when neither the caller, the session nor the
// process supplies a project.
const FallbackProject = "global"

// Resolve returns the effective project key: the first of explicit,
// sessionDefault and processDefault that is non-blank after trimming, else
// FallbackProject.
func Resolve(explicit, sessionDefault, processDefault string) string {
	for _, p := range []string{explicit, sessionDefault, processDefault} {
		if p = strings.TrimSpace(p); p != "" {
			return p
		}
	}
	return FallbackProject
}

// Session holds the project context of one caller session.
type Session struct {
	mu             sync.Mutex
	defaultProject string
	processDefault string
}

// New creates a session. sessionDefault is the project established when the
// session started and may be empty; processDefault is the process-wide
// default.
func New(sessionDefault, processDefault string) *Session {
	return &Session{
		defaultProject: strings.TrimSpace(sessionDefault),
		processDefault: strings.TrimSpace(processDefault),
	}
}

// Project resolves the project for one operation of this session.
func (s *Session) Project(explicit string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Resolve(explicit, s.defaultProject, s.processDefault)
}

// SwitchProject replaces the session default and returns the project now in
// effect. A blank name clears the session default.
func (s *Session) SwitchProject(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaultProject = strings.TrimSpace(name)
	return Resolve("", s.defaultProject, s.processDefault)
}

// Current reports the project in effect when no explicit project is given
// and whether it comes from a session default.
func (s *Session) Current() (project string, fromSession bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Resolve("", s.defaultProject, s.processDefault), s.defaultProject != ""
}
