package store

import (
	"context"

	"github.com/tartampluch/go-contacts/internal/contact"
)

// Pending is the eventual outcome of a mutation. The optimistic value is
// available at once; the settled value once the backend has answered and
// the list was reconciled.
type Pending struct {
	optimistic contact.Contact
	done       chan struct{}
	result     contact.Contact
	err        error
}

func newPending(optimistic contact.Contact) *Pending {
	return &Pending{optimistic: optimistic, done: make(chan struct{})}
}

func settled(c contact.Contact, err error) *Pending {
	p := newPending(c)
	p.settle(c, err)
	return p
}

// Optimistic returns the value applied locally when the mutation started.
func (p *Pending) Optimistic() contact.Contact {
	return p.optimistic
}

// Done is closed once the mutation has settled.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the mutation settles or ctx ends. On a remote failure
// the contact is the one kept locally and err tells why the backend did not
// confirm it.
func (p *Pending) Wait(ctx context.Context) (contact.Contact, error) {
	select {
	case <-p.done:
		return p.result, p.err
	case <-ctx.Done():
		return p.optimistic, ctx.Err()
	}
}

func (p *Pending) settle(c contact.Contact, err error) {
	p.result, p.err = c, err
	close(p.done)
}
