package topology

import (
	"context"

	"github.com/brinkdb/mongowire/x/mongo/driver"
	"github.com/brinkdb/mongowire/x/mongo/driver/address"
	"github.com/brinkdb/mongowire/x/mongo/driver/auth"
	"github.com/brinkdb/mongowire/x/mongo/driver/description"
)

// AuthHandshaker composes the hello handshake with a credential
// authenticator: GetHandshakeInformation runs hello exactly as a plain
// handshake would, and FinishHandshake conducts the SASL conversation
// once the connection has a description to authenticate against.
type AuthHandshaker struct {
	Wrapped driver.Handshaker
	Cred    *auth.Cred
	Mechanism string
}

// GetHandshakeInformation delegates to the wrapped handshaker.
func (h *AuthHandshaker) GetHandshakeInformation(ctx context.Context, addr address.Address, c driver.Connection) (driver.HandshakeInformation, error) {
	return h.Wrapped.GetHandshakeInformation(ctx, addr, c)
}

// FinishHandshake runs the wrapped handshaker's finish step, then
// authenticates if credentials were supplied and the server isn't an
// arbiter (arbiters hold no data and never authenticate).
func (h *AuthHandshaker) FinishHandshake(ctx context.Context, c driver.Connection) error {
	if err := h.Wrapped.FinishHandshake(ctx, c); err != nil {
		return err
	}
	if h.Cred == nil || c.Description().Kind == description.RSArbiter {
		return nil
	}

	authenticator, err := auth.CreateAuthenticator(h.Mechanism, h.Cred)
	if err != nil {
		return err
	}
	return authenticator.Auth(ctx, &auth.Config{Connection: c})
}
