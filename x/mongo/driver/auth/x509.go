package auth

import (
	"context"

	"github.com/brinkdb/mongowire/bson/bsontype"
	"github.com/brinkdb/mongowire/x/bsonx/bsoncore"
)

// X509Authenticator authenticates using a client certificate's subject
// name rather than a password; TLS itself has already proven possession
// of the matching private key by the time this command runs.
type X509Authenticator struct {
	cred *Cred
}

func (a *X509Authenticator) Auth(ctx context.Context, cfg *Config) error {
	_, err := runSaslCommand(ctx, cfg.Connection, "$external", func(dst []byte) []byte {
		dst = bsoncore.AppendHeader(dst, bsontype.Int32, "authenticate")
		dst = bsoncore.AppendInt32(dst, 1)
		dst = bsoncore.AppendHeader(dst, bsontype.String, "mechanism")
		dst = bsoncore.AppendString(dst, "MONGODB-X509")
		if a.cred.Username != "" {
			dst = bsoncore.AppendHeader(dst, bsontype.String, "user")
			dst = bsoncore.AppendString(dst, a.cred.Username)
		}
		return dst
	})
	return err
}
