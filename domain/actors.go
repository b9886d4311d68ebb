package domain

import (
	"fmt"
	"github.com/google/uuid"
	"time"
)

// ActorStatus is the lifecycle state of an actor.
type ActorStatus string

const (
	ActorActive   ActorStatus = "active"
	ActorDisabled ActorStatus = "disabled"
)

// Actor represents a local or remote federated identity.
type Actor struct {
	Id            uuid.UUID
	Username      string
	Domain        string
	ActorURI      string
	InboxURI      string
	ActorType     string // usually "Person"
	Status        ActorStatus
	IsRemote      bool
	DisplayName   string
	Summary       string
	PublicKeyPem  string
	PrivateKeyPem string // empty for remote actors, always
	CreatedAt     time.Time
}

// CanSign reports whether this actor may sign outbound activities.
// A local actor needs both key halves before it is usable for signing.
func (a *Actor) CanSign() bool {
	return !a.IsRemote && a.Status == ActorActive &&
		a.PublicKeyPem != "" && a.PrivateKeyPem != ""
}

func (a *Actor) ToString() string {
	return fmt.Sprintf("\n\tId: %s \n\tUsername: %s \n\tDomain: %s \n\tRemote: %t", a.Id, a.Username, a.Domain, a.IsRemote)
}

// ServerKey is a server-wide signing key pair, used for HTTP signatures
// where no actor context exists. Rotation supersedes, it never mutates a
// row in place.
type ServerKey struct {
	Id            uuid.UUID
	PublicKeyPem  string
	PrivateKeyPem string
	IsCurrent     bool
	Revoked       bool
	CreatedAt     time.Time
}
