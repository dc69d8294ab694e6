package auth

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"fmt"

	"github.com/xdg-go/scram"
	"github.com/xdg-go/stringprep"
	"golang.org/x/text/secure/precis"
)

// ScramAuthenticator implements SCRAM-SHA-1 and SCRAM-SHA-256 via
// xdg-go/scram, the same library the upstream driver uses for its SASL
// hash negotiation.
type ScramAuthenticator struct {
	cred      *Cred
	mechanism string
}

func (a *ScramAuthenticator) Auth(ctx context.Context, cfg *Config) error {
	var hashGen scram.HashGeneratorFcn
	var passdigest string

	switch a.mechanism {
	case "SCRAM-SHA-1":
		hashGen = sha1.New
		passdigest = mongoPasswordDigest(a.cred.Username, a.cred.Password)
	case "SCRAM-SHA-256":
		hashGen = sha256.New
		normalized, err := stringprep.SASLprep.Prepare(a.cred.Password)
		if err != nil {
			return newAuthError("SASLprep password", err)
		}
		passdigest = normalized
	default:
		return fmt.Errorf("auth: unknown SCRAM mechanism %q", a.mechanism)
	}

	username := a.cred.Username
	if a.mechanism == "SCRAM-SHA-256" {
		normalized, err := precis.UsernameCaseMapped.String(username)
		if err == nil {
			username = normalized
		}
	}

	client, err := scram.NewClient(hashGen, username, passdigest)
	if err != nil {
		return newAuthError("create scram client", err)
	}
	client.WithMinIterations(4096)

	conv := client.NewConversation()
	adapter := &scramSaslAdapter{conv: conv, mechanism: a.mechanism}

	source := a.cred.Source
	if source == "" {
		source = "admin"
	}
	return ConductSaslConversation(ctx, cfg.Connection, source, adapter)
}

type scramSaslAdapter struct {
	conv      *scram.ClientConversation
	mechanism string
}

func (a *scramSaslAdapter) Start() (string, []byte, error) {
	step, err := a.conv.Step("")
	if err != nil {
		return a.mechanism, nil, err
	}
	return a.mechanism, []byte(step), nil
}

func (a *scramSaslAdapter) Next(challenge []byte) ([]byte, error) {
	step, err := a.conv.Step(string(challenge))
	if err != nil {
		return nil, err
	}
	return []byte(step), nil
}

func (a *scramSaslAdapter) Completed() bool {
	return a.conv.Done()
}

// mongoPasswordDigest computes the legacy md5(username:mongo:password)
// digest SCRAM-SHA-1 hashes credentials through, for backwards
// compatibility with the original MONGODB-CR password hashing scheme.
func mongoPasswordDigest(username, password string) string {
	h := md5.New()
	h.Write([]byte(username))
	h.Write([]byte(":mongo:"))
	h.Write([]byte(password))
	return fmt.Sprintf("%x", h.Sum(nil))
}
