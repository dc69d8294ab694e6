// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package mongo is the public client surface: Client, Database, Collection,
// Cursor, and ChangeStream, built over the x/mongo/driver command executor.
package mongo

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/brinkdb/mongowire/bson"
	"github.com/brinkdb/mongowire/bson/bsontype"
	"github.com/brinkdb/mongowire/bson/primitive"
	"github.com/brinkdb/mongowire/x/bsonx/bsoncore"
)

// ErrNoDocuments is returned by FindOne (and the FindOneAnd* methods) when
// no document matches the filter.
var ErrNoDocuments = errors.New("mongo: no documents in result")

// ErrNilDocument is returned when a nil document is passed where one is required.
var ErrNilDocument = errors.New("mongo: document is nil")

// ErrEmptySlice is returned when an empty slice is passed to an API
// method that requires a non-empty slice of documents.
var ErrEmptySlice = errors.New("mongo: must provide at least one element in input slice")

// ErrClientDisconnected is returned when a Client method is called after Disconnect.
var ErrClientDisconnected = errors.New("mongo: client is disconnected")

// transformDocument marshals document into a bsoncore.Document, accepting
// anything bson.Marshal accepts (struct, map, bson.D/M, or already-encoded
// bytes/bson.Raw).
func transformDocument(document interface{}) (bsoncore.Document, error) {
	if document == nil {
		idx, dst := bsoncore.AppendDocumentStart(nil)
		return bsoncore.Document(bsoncore.AppendDocumentEnd(dst, idx)), nil
	}
	switch t := document.(type) {
	case bsoncore.Document:
		return t, nil
	case bson.Raw:
		return bsoncore.Document(t), nil
	case []byte:
		return bsoncore.Document(t), nil
	}

	data, err := bson.Marshal(document)
	if err != nil {
		return nil, fmt.Errorf("mongo: cannot transform type %s to a document: %w", reflect.TypeOf(document), err)
	}
	return bsoncore.Document(data), nil
}

// transformAggregatePipeline converts pipeline (a slice of stage documents,
// in any shape transformDocument accepts) into a raw BSON array.
func transformAggregatePipeline(pipeline interface{}) (bsoncore.Array, error) {
	val := reflect.ValueOf(pipeline)
	if val.Kind() != reflect.Slice {
		return nil, fmt.Errorf("mongo: pipeline must be a slice, got %s", reflect.TypeOf(pipeline))
	}

	idx, dst := bsoncore.AppendDocumentStart(nil)
	for i := 0; i < val.Len(); i++ {
		stage, err := transformDocument(val.Index(i).Interface())
		if err != nil {
			return nil, err
		}
		dst = bsoncore.AppendDocumentElement(dst, itoa(i), stage)
	}
	return bsoncore.Array(bsoncore.AppendDocumentEnd(dst, idx)), nil
}

// ensureID returns doc with an _id field, generating and prepending a
// fresh ObjectID if one wasn't already present, plus the effective _id value.
func ensureID(doc bsoncore.Document) (bsoncore.Document, interface{}, error) {
	elements, err := doc.Elements()
	if err != nil {
		return nil, nil, err
	}
	for _, element := range elements {
		if element.Key() == "_id" {
			return doc, idValue(element.Value()), nil
		}
	}

	oid := primitive.NewObjectID()
	idx, dst := bsoncore.AppendDocumentStart(nil)
	dst = bsoncore.AppendObjectIDElement(dst, "_id", oid)
	for _, element := range elements {
		dst = append(dst, element...)
	}
	return bsoncore.Document(bsoncore.AppendDocumentEnd(dst, idx)), oid, nil
}

func idValue(v bsoncore.Value) interface{} {
	switch v.Type {
	case bsontype.ObjectID:
		return v.ObjectID()
	case bsontype.String:
		return v.StringValue()
	case bsontype.Int32:
		return v.Int32()
	case bsontype.Int64:
		return v.Int64()
	default:
		return v
	}
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	if i < 0 {
		return "-" + itoa(-i)
	}
	digits := [20]byte{}
	pos := len(digits)
	for i > 0 {
		pos--
		digits[pos] = byte('0' + i%10)
		i /= 10
	}
	return string(digits[pos:])
}
