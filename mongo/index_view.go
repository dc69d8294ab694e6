// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package mongo

import (
	"context"
	"errors"

	"github.com/brinkdb/mongowire/bson"
	"github.com/brinkdb/mongowire/bson/bsontype"
	"github.com/brinkdb/mongowire/x/bsonx/bsoncore"
)

// ErrNonStringIndexName indicates that the index name specified in the options is not a string.
var ErrNonStringIndexName = errors.New("mongo: index name must be a string")

// IndexView is used to create, drop, and list indexes on a given collection.
// It is built on Database.RunCommand/RunCommandCursor rather than a
// dedicated operation type, since createIndexes/dropIndexes/listIndexes
// are low-traffic management commands, not hot-path CRUD.
type IndexView struct {
	coll *Collection
}

// Indexes returns the IndexView for this collection.
func (c *Collection) Indexes() IndexView { return IndexView{coll: c} }

// IndexModel describes an index to create: its key pattern and any
// per-index options (name, unique, sparse, partial filter, and so on).
type IndexModel struct {
	Keys    interface{}
	Options map[string]interface{}
}

// List returns a cursor iterating over every index defined on the collection.
func (iv IndexView) List(ctx context.Context) (*Cursor, error) {
	return iv.coll.db.RunCommandCursor(ctx, map[string]interface{}{
		"listIndexes": iv.coll.name,
	})
}

// ListSpecifications returns the specification document for every index.
func (iv IndexView) ListSpecifications(ctx context.Context) ([]bson.Raw, error) {
	cursor, err := iv.List(ctx)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var specs []bson.Raw
	for cursor.Next(ctx) {
		specs = append(specs, bson.Raw(cursor.Current()))
	}
	return specs, cursor.Err()
}

// CreateOne creates a single index and returns its name.
func (iv IndexView) CreateOne(ctx context.Context, model IndexModel) (string, error) {
	names, err := iv.CreateMany(ctx, []IndexModel{model})
	if err != nil {
		return "", err
	}
	return names[0], nil
}

// CreateMany creates every index in models and returns their names, in order.
func (iv IndexView) CreateMany(ctx context.Context, models []IndexModel) ([]string, error) {
	names := make([]string, 0, len(models))
	specs := make([]interface{}, 0, len(models))
	for _, model := range models {
		keysDoc, err := transformDocument(model.Keys)
		if err != nil {
			return nil, err
		}

		name, ok := model.Options["name"]
		nameStr, isString := name.(string)
		if ok && !isString {
			return nil, ErrNonStringIndexName
		}
		if !ok {
			nameStr = defaultIndexName(keysDoc)
		}
		names = append(names, nameStr)

		spec := map[string]interface{}{"key": keysDoc, "name": nameStr}
		for k, v := range model.Options {
			if k == "name" {
				continue
			}
			spec[k] = v
		}
		specs = append(specs, spec)
	}

	_, err := iv.coll.db.RunCommand(ctx, map[string]interface{}{
		"createIndexes": iv.coll.name,
		"indexes":       specs,
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

// DropOne drops the named index.
func (iv IndexView) DropOne(ctx context.Context, name string) error {
	_, err := iv.coll.db.RunCommand(ctx, map[string]interface{}{
		"dropIndexes": iv.coll.name,
		"index":       name,
	})
	return err
}

// DropAll drops every index on the collection except _id.
func (iv IndexView) DropAll(ctx context.Context) error {
	_, err := iv.coll.db.RunCommand(ctx, map[string]interface{}{
		"dropIndexes": iv.coll.name,
		"index":       "*",
	})
	return err
}

func defaultIndexName(keys bsoncore.Document) string {
	elements, err := keys.Elements()
	if err != nil {
		return ""
	}
	name := ""
	for i, element := range elements {
		if i > 0 {
			name += "_"
		}
		name += element.Key() + "_"
		v := element.Value()
		switch v.Type {
		case bsontype.String:
			name += v.StringValue()
		case bsontype.Int32:
			name += itoa(int(v.Int32()))
		case bsontype.Int64:
			name += itoa(int(v.Int64()))
		case bsontype.Double:
			name += itoa(int(v.Double()))
		}
	}
	return name
}
