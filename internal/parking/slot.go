package parking

import "fmt"

type Slot struct {
	ID       int
	Category Category
	Occupied bool
	Session  *Session
}

func NewSlot(id int, category Category) *Slot {
	return &Slot{
		ID:       id,
		Category: category,
		Occupied: false,
		Session:  nil,
	}
}

func (s *Slot) Park(session *Session) error {
	if s.Occupied {
		return fmt.Errorf("%w: slot %d is occupied", ErrInvalidState, s.ID)
	}
	s.Session = session
	s.Occupied = true
	return nil
}

func (s *Slot) Leave() (*Session, error) {
	if !s.Occupied {
		return nil, fmt.Errorf("%w: slot %d", ErrInvalidState, s.ID)
	}
	session := s.Session
	s.Session = nil
	s.Occupied = false
	return session, nil
}

// snapshot returns a detached copy safe to hand out to readers.
func (s *Slot) snapshot() Slot {
	out := *s
	if s.Session != nil {
		session := *s.Session
		out.Session = &session
	}
	return out
}
