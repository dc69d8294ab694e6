// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package mongo

import (
	"context"

	"github.com/brinkdb/mongowire/mongo/options"
	"github.com/brinkdb/mongowire/mongo/readconcern"
	"github.com/brinkdb/mongowire/mongo/readpref"
	"github.com/brinkdb/mongowire/mongo/writeconcern"
	"github.com/brinkdb/mongowire/x/bsonx/bsoncore"
	"github.com/brinkdb/mongowire/x/mongo/driver/operation"
	"github.com/brinkdb/mongowire/x/mongo/driver/topology"
)

// Database is a handle to a named MongoDB database, the parent of every
// Collection obtained through it.
type Database struct {
	client *Client
	name   string

	readPreference *readpref.ReadPref
	readConcern    *readconcern.ReadConcern
	writeConcern   *writeconcern.WriteConcern
}

// Name returns the name of the database.
func (db *Database) Name() string { return db.name }

// Client returns the Client this Database was derived from.
func (db *Database) Client() *Client { return db.client }

// Collection returns a handle to the named collection, inheriting the
// database's defaults unless opts overrides them.
func (db *Database) Collection(name string, opts ...*options.CollectionOptions) *Collection {
	coll := &Collection{
		db:             db,
		name:           name,
		readPreference: db.readPreference,
		readConcern:    db.readConcern,
		writeConcern:   db.writeConcern,
	}
	for _, o := range opts {
		if o == nil {
			continue
		}
		if o.ReadPreference != nil {
			coll.readPreference = o.ReadPreference
		}
		if o.ReadConcern != nil {
			coll.readConcern = o.ReadConcern
		}
		if o.WriteConcern != nil {
			coll.writeConcern = o.WriteConcern
		}
	}
	return coll
}

// RunCommand runs an arbitrary command against this database, routed by
// the last non-nil opts.ReadPreference, or the database's default if none
// is set.
func (db *Database) RunCommand(ctx context.Context, command interface{}, opts ...*options.RunCmdOptions) (bsoncore.Document, error) {
	cmdDoc, err := transformDocument(command)
	if err != nil {
		return nil, err
	}

	rp := db.readPreference
	for _, o := range opts {
		if o != nil && o.ReadPreference != nil {
			rp = o.ReadPreference
		}
	}

	op := operation.NewRunCommand(cmdDoc).
		Database(db.name).
		Deployment(db.client.deployment).
		ReadPreference(rp.ToDescription()).
		ServerSelector(&topology.ReadPrefSelector{RP: rp.ToDescription()})
	if err := op.Execute(ctx); err != nil {
		return nil, err
	}
	return op.Result(), nil
}

// RunCommandCursor runs command and returns a Cursor over its "cursor"
// field reply, for commands like listIndexes issued as a raw document.
func (db *Database) RunCommandCursor(ctx context.Context, command interface{}, opts ...*options.RunCmdOptions) (*Cursor, error) {
	cmdDoc, err := transformDocument(command)
	if err != nil {
		return nil, err
	}

	rp := db.readPreference
	for _, o := range opts {
		if o != nil && o.ReadPreference != nil {
			rp = o.ReadPreference
		}
	}

	op := operation.NewRunCommand(cmdDoc).
		Database(db.name).
		Deployment(db.client.deployment).
		ReadPreference(rp.ToDescription()).
		ServerSelector(&topology.ReadPrefSelector{RP: rp.ToDescription()})
	if err := op.Execute(ctx); err != nil {
		return nil, err
	}
	bc, err := op.Cursor(driverCursorOptions())
	if err != nil {
		return nil, err
	}
	return newCursor(bc), nil
}

// Drop drops this database, deleting every collection it contains.
func (db *Database) Drop(ctx context.Context) error {
	_, err := db.RunCommand(ctx, map[string]interface{}{"dropDatabase": 1})
	return err
}

// ListCollectionNames returns the names of every collection matching filter.
func (db *Database) ListCollectionNames(ctx context.Context, filter interface{}) ([]string, error) {
	filterDoc, err := transformDocument(filter)
	if err != nil {
		return nil, err
	}

	idx, dst := bsoncore.AppendDocumentStart(nil)
	dst = bsoncore.AppendStringElement(dst, "listCollections", db.name)
	dst = bsoncore.AppendInt32Element(dst, "nameOnly", 1)
	dst = bsoncore.AppendDocumentElement(dst, "filter", filterDoc)
	dst = bsoncore.AppendDocumentEnd(dst, idx)

	cursor, err := db.RunCommandCursor(ctx, bsoncore.Document(dst))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var names []string
	for cursor.Next(ctx) {
		var result struct {
			Name string `bson:"name"`
		}
		if err := cursor.Decode(&result); err != nil {
			return nil, err
		}
		names = append(names, result.Name)
	}
	return names, cursor.Err()
}
