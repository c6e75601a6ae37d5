// Package conversation manages the live chat loop: the message
// transcript, the crisis latch, and the compose buffer that both the
// keyboard and the audio pipeline write into.
package conversation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Chatter dispatches one user turn to the companion service.
type Chatter interface {
	Chat(ctx context.Context, message, sessionID string) (ChatReply, error)
}

// ChatReply is the service's answer to one turn.
type ChatReply struct {
	Reply    string
	IsCrisis bool
}

type Role string

const (
	RoleUser    Role = "user"
	RolePersona Role = "persona"
)

// Message is one transcript entry. Messages are never mutated after
// creation; the transcript is append-only.
type Message struct {
	ID   int64
	Role Role
	Text string
	At   time.Time
}

// Helpline is a crisis support contact shown in the escalation banner.
type Helpline struct {
	Name   string
	Number string
}

var Helplines = []Helpline{
	{Name: "iCall", Number: "9152987821"},
	{Name: "AASRA", Number: "9820466726"},
	{Name: "Vandrevala", Number: "9999666555"},
}

// ErrConnectivity is reported when a turn falls back to the apologetic
// reply because the service could not be reached.
type ErrConnectivity struct {
	Err error
}

func (e *ErrConnectivity) Error() string {
	return fmt.Sprintf("connection issue — is the companion service running? (%v)", e.Err)
}

func (e *ErrConnectivity) Unwrap() error { return e.Err }

// Controller serializes chat turns for one session. A second Submit
// while one is in flight is dropped, not queued.
type Controller struct {
	chatter    Chatter
	sessionID  string
	personName string

	mu      sync.Mutex
	msgs    []Message
	nextID  int64
	crisis  bool
	sending bool
	compose string
}

func NewController(chatter Chatter, sessionID, personName string) *Controller {
	return &Controller{
		chatter:    chatter,
		sessionID:  sessionID,
		personName: personName,
		nextID:     1,
	}
}

// SeedWelcome appends the persona's opening greeting. Called once at
// conversation start.
func (c *Controller) SeedWelcome() {
	text := "I'm here.\n\nTell me what's on your heart. I'm listening."
	if c.personName != "" {
		text = c.personName + " is here.\n\nTell me what's on your heart. I'm listening."
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.appendLocked(RolePersona, text)
}

// Submit sends one user turn. Empty input and overlapping submissions
// are dropped. The user message is appended before the network call so
// transcript order always matches submission order.
func (c *Controller) Submit(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)

	c.mu.Lock()
	if text == "" || c.sending {
		c.mu.Unlock()
		return nil
	}
	c.sending = true
	c.compose = ""
	c.appendLocked(RoleUser, text)
	c.mu.Unlock()

	reply, err := c.chatter.Chat(ctx, text, c.sessionID)

	c.mu.Lock()
	// Reset sending last, whatever the outcome, so the user can always
	// submit the next turn.
	defer func() {
		c.sending = false
		c.mu.Unlock()
	}()

	if err != nil {
		c.appendLocked(RolePersona, c.fallbackReply())
		return &ErrConnectivity{Err: err}
	}
	if reply.IsCrisis {
		c.crisis = true
	}
	c.appendLocked(RolePersona, reply.Reply)
	return nil
}

func (c *Controller) fallbackReply() string {
	name := c.personName
	if name == "" {
		name = "Solace"
	}
	return "Something went gently wrong. Please try again.\n\n— " + name
}

// Sending reports whether a turn is in flight.
func (c *Controller) Sending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sending
}

// Crisis reports the latch state. Once set by any reply it stays set
// across later turns until dismissed.
func (c *Controller) Crisis() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.crisis
}

// DismissCrisis clears the latch. The transcript is untouched.
func (c *Controller) DismissCrisis() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.crisis = false
}

// Messages returns a copy of the transcript in submission order.
func (c *Controller) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.msgs...)
}

// SetCompose replaces the pending input text. This is the audio
// pipeline's output sink.
func (c *Controller) SetCompose(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.compose = text
}

// Compose returns the pending input text.
func (c *Controller) Compose() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.compose
}

// PersonName returns the persona's display name.
func (c *Controller) PersonName() string {
	return c.personName
}

func (c *Controller) appendLocked(role Role, text string) {
	c.msgs = append(c.msgs, Message{
		ID:   c.nextID,
		Role: role,
		Text: text,
		At:   time.Now(),
	})
	c.nextID++
}
