// Package auth implements the authentication mechanisms the driver
// supports: SCRAM-SHA-1, SCRAM-SHA-256, and X.509. SCRAM conducts its
// conversation over saslStart/saslContinue commands and X.509 sends a
// single authenticate command; both run through the same driver.Operation
// executor every other command uses.
package auth

import (
	"context"
	"fmt"

	"github.com/brinkdb/mongowire/bson/bsontype"
	"github.com/brinkdb/mongowire/x/bsonx/bsoncore"
	"github.com/brinkdb/mongowire/x/mongo/driver"
	"github.com/brinkdb/mongowire/x/mongo/driver/description"
)

// Cred holds the credentials and options needed to authenticate a
// connection, as parsed out of a connection string's userinfo and
// authMechanismProperties.
type Cred struct {
	Source      string
	Username    string
	Password    string
	PasswordSet bool
	Props       map[string]string
}

// Authenticator authenticates a single connection against its server.
type Authenticator interface {
	Auth(ctx context.Context, cfg *Config) error
}

// Config carries what an Authenticator needs to run its conversation: the
// connection to authenticate.
type Config struct {
	Connection driver.Connection
}

// SaslClient is the client side of a sasl conversation: it produces the
// mechanism name and initial payload, then answers each server challenge
// until Completed reports the conversation has converged.
type SaslClient interface {
	Start() (mechanism string, payload []byte, err error)
	Next(challenge []byte) ([]byte, error)
	Completed() bool
}

// CreateAuthenticator builds the Authenticator for the named mechanism.
func CreateAuthenticator(mechanism string, cred *Cred) (Authenticator, error) {
	switch mechanism {
	case "SCRAM-SHA-1":
		return &ScramAuthenticator{cred: cred, mechanism: "SCRAM-SHA-1"}, nil
	case "SCRAM-SHA-256":
		return &ScramAuthenticator{cred: cred, mechanism: "SCRAM-SHA-256"}, nil
	case "MONGODB-X509":
		return &X509Authenticator{cred: cred}, nil
	case "", "DEFAULT":
		return &ScramAuthenticator{cred: cred, mechanism: "SCRAM-SHA-256"}, nil
	default:
		return nil, fmt.Errorf("auth: unsupported mechanism %q", mechanism)
	}
}

// ConductSaslConversation drives client's saslStart/saslContinue exchange
// over conn, single-stepping until both sides agree the conversation is
// done. Arbiters never authenticate.
func ConductSaslConversation(ctx context.Context, conn driver.Connection, db string, client SaslClient) error {
	if conn.Description().Kind == description.RSArbiter {
		return nil
	}
	if db == "" {
		db = "admin"
	}

	mechanism, payload, err := client.Start()
	if err != nil {
		return fmt.Errorf("auth: %s: %w", mechanism, err)
	}

	resp, err := runSaslCommand(ctx, conn, db, func(dst []byte) []byte {
		dst = bsoncore.AppendHeader(dst, bsontype.Int32, "saslStart")
		dst = bsoncore.AppendInt32(dst, 1)
		dst = bsoncore.AppendHeader(dst, bsontype.String, "mechanism")
		dst = bsoncore.AppendString(dst, mechanism)
		dst = appendBinaryElement(dst, "payload", payload)
		dst = bsoncore.AppendHeader(dst, bsontype.Boolean, "autoAuthorize")
		dst = bsoncore.AppendBoolean(dst, true)
		return dst
	})
	if err != nil {
		return fmt.Errorf("auth: %s: %w", mechanism, err)
	}

	for {
		done, _ := resp.Lookup("done")
		if done.Type != 0 && done.Boolean() && client.Completed() {
			return nil
		}

		challenge, _ := resp.Lookup("payload")
		_, challengeData := challenge.Binary()
		next, err := client.Next(challengeData)
		if err != nil {
			return fmt.Errorf("auth: %s: %w", mechanism, err)
		}

		if done.Type != 0 && done.Boolean() && client.Completed() {
			return nil
		}

		convIDVal, _ := resp.Lookup("conversationId")
		convID := convIDVal.Int32()

		resp, err = runSaslCommand(ctx, conn, db, func(dst []byte) []byte {
			dst = bsoncore.AppendHeader(dst, bsontype.Int32, "saslContinue")
			dst = bsoncore.AppendInt32(dst, 1)
			dst = bsoncore.AppendHeader(dst, bsontype.Int32, "conversationId")
			dst = bsoncore.AppendInt32(dst, convID)
			dst = appendBinaryElement(dst, "payload", next)
			return dst
		})
		if err != nil {
			return fmt.Errorf("auth: %s: %w", mechanism, err)
		}
	}
}

// runSaslCommand issues one command body (built by buildBody into an
// already-opened document) on conn through driver.Operation, using a
// SingleConnectionDeployment and no session or cluster clock, since sasl
// commands run pre-session, pre-cluster-time.
func runSaslCommand(ctx context.Context, conn driver.Connection, db string, buildBody func([]byte) []byte) (bsoncore.Document, error) {
	op := driver.Operation{
		Database:   db,
		Deployment: driver.SingleConnectionDeployment{C: conn},
		CommandFn: func(dst []byte, _ description.SelectedServer) ([]byte, error) {
			return buildBody(dst), nil
		},
	}

	var result bsoncore.Document
	op.ProcessResponseFn = func(info driver.ResponseInfo) error {
		result = info.ServerResponse
		return nil
	}

	if err := op.Execute(ctx); err != nil {
		return nil, err
	}
	return result, nil
}

func appendBinaryElement(dst []byte, key string, data []byte) []byte {
	dst = bsoncore.AppendHeader(dst, bsontype.Binary, key)
	dst = bsoncore.AppendInt32(dst, int32(len(data)))
	dst = append(dst, 0x00) // generic binary subtype
	dst = append(dst, data...)
	return dst
}

func newAuthError(msg string, err error) error {
	if err != nil {
		return fmt.Errorf("auth: %s: %w", msg, err)
	}
	return fmt.Errorf("auth: %s", msg)
}
