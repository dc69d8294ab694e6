// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package mongo

import (
	"context"
	"reflect"

	"github.com/brinkdb/mongowire/bson"
	"github.com/brinkdb/mongowire/x/bsonx/bsoncore"
	"github.com/brinkdb/mongowire/x/mongo/driver"
)

// Cursor iterates the results of an operation that returns a server-side
// cursor, decoding one document at a time and transparently fetching
// further batches with getMore as the current batch is exhausted.
type Cursor struct {
	bc      *driver.BatchCursor
	batch   []bsoncore.Document
	current bsoncore.Document
	err     error
	closed  bool
}

func newCursor(bc *driver.BatchCursor) *Cursor {
	return &Cursor{bc: bc, batch: bc.Batch()}
}

func driverCursorOptions() driver.CursorOptions {
	return driver.CursorOptions{}
}

// Next advances the cursor to the next document, fetching a new batch via
// getMore if the current one is exhausted. It returns false once the
// cursor is exhausted or an error occurred; callers should check Err in
// the latter case.
func (c *Cursor) Next(ctx context.Context) bool {
	if c.closed || c.err != nil {
		return false
	}
	if len(c.batch) == 0 {
		ok, err := c.bc.Next(ctx)
		if err != nil {
			c.err = err
			return false
		}
		if !ok {
			return false
		}
		c.batch = c.bc.Batch()
		if len(c.batch) == 0 {
			return false
		}
	}
	c.current, c.batch = c.batch[0], c.batch[1:]
	return true
}

// Decode unmarshals the document the cursor currently points at into v.
func (c *Cursor) Decode(v interface{}) error {
	if c.current == nil {
		return ErrNoDocuments
	}
	return bson.Unmarshal(c.current, v)
}

// Current is the raw document the cursor currently points at.
func (c *Cursor) Current() bsoncore.Document { return c.current }

// Err returns the error, if any, that stopped Next from advancing.
func (c *Cursor) Err() error { return c.err }

// Close releases the server-side cursor, issuing a killCursors if it
// hasn't already been exhausted.
func (c *Cursor) Close(ctx context.Context) error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.bc.Close(ctx)
}

// All drains the cursor into results, which must be a pointer to a slice.
// It closes the cursor when done, even on error.
func (c *Cursor) All(ctx context.Context, results interface{}) error {
	defer c.Close(ctx)

	sliceVal := reflect.ValueOf(results)
	if sliceVal.Kind() != reflect.Ptr || sliceVal.Elem().Kind() != reflect.Slice {
		return ErrNilDocument
	}
	sliceVal = sliceVal.Elem()
	elemType := sliceVal.Type().Elem()

	out := reflect.MakeSlice(sliceVal.Type(), 0, 0)
	for c.Next(ctx) {
		elem := reflect.New(elemType)
		if err := c.Decode(elem.Interface()); err != nil {
			return err
		}
		out = reflect.Append(out, elem.Elem())
	}
	if err := c.Err(); err != nil {
		return err
	}
	sliceVal.Set(out)
	return nil
}
