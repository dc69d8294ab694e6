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
	"github.com/brinkdb/mongowire/mongo/options"
	"github.com/brinkdb/mongowire/x/mongo/driver"
)

// ErrMissingResumeToken indicates that a change stream notification from
// the server did not contain a resume token.
var ErrMissingResumeToken = errors.New("mongo: cannot provide resume functionality when the resume token is missing")

// ChangeStream watches a collection for changes, prepending a
// $changeStream stage to the pipeline the caller supplied and
// transparently resuming from the last observed token if the underlying
// cursor fails with a resumable error.
type ChangeStream struct {
	coll        *Collection
	pipeline    interface{}
	args        options.ChangeStreamArgs
	cursor      *Cursor
	resumeToken bson.Raw
	err         error
}

// Watch opens a change stream over the collection, with pipeline
// (prepended by $changeStream) narrowing which events are observed.
func (c *Collection) Watch(ctx context.Context, pipeline interface{}, opts ...*options.ChangeStreamOptions) (*ChangeStream, error) {
	var args options.ChangeStreamArgs
	for _, o := range opts {
		if o == nil {
			continue
		}
		for _, setter := range o.ArgsSetters() {
			if err := setter(&args); err != nil {
				return nil, err
			}
		}
	}

	cs := &ChangeStream{coll: c, pipeline: pipeline, args: args}
	if err := cs.open(ctx); err != nil {
		return nil, err
	}
	return cs, nil
}

func (cs *ChangeStream) open(ctx context.Context) error {
	changeStreamStage := map[string]interface{}{}
	if cs.args.FullDocument != nil {
		changeStreamStage["fullDocument"] = string(*cs.args.FullDocument)
	}
	if cs.resumeToken != nil {
		changeStreamStage["resumeAfter"] = cs.resumeToken
	} else if cs.args.ResumeAfter != nil {
		changeStreamStage["resumeAfter"] = cs.args.ResumeAfter
	} else if cs.args.StartAtOperationTime != nil {
		changeStreamStage["startAtOperationTime"] = *cs.args.StartAtOperationTime
	}

	full := append([]interface{}{map[string]interface{}{"$changeStream": changeStreamStage}}, asSlice(cs.pipeline)...)

	aggOpts := options.Aggregate()
	if cs.args.BatchSize != nil {
		aggOpts.SetBatchSize(*cs.args.BatchSize)
	}

	cursor, err := cs.coll.Aggregate(ctx, full, aggOpts)
	if err != nil {
		return err
	}
	cs.cursor = cursor
	return nil
}

func asSlice(pipeline interface{}) []interface{} {
	if pipeline == nil {
		return nil
	}
	if s, ok := pipeline.(bson.A); ok {
		return []interface{}(s)
	}
	if s, ok := pipeline.([]interface{}); ok {
		return s
	}
	return nil
}

// Next blocks until the next change event is available, resuming the
// stream once (from the last observed resume token) if the cursor fails
// with a resumable error: any error that is not a server command error,
// or a server error labelled ResumableChangeStreamError. Other errors
// stop the stream and are reported by Err.
func (cs *ChangeStream) Next(ctx context.Context) bool {
	if cs.cursor.Next(ctx) {
		var event struct {
			ID bson.Raw `bson:"_id"`
		}
		if err := cs.cursor.Decode(&event); err == nil {
			cs.resumeToken = event.ID
		}
		return true
	}

	if err := cs.cursor.Err(); err != nil {
		cs.cursor.Close(ctx)
		var cmdErr driver.CommandError
		resumable := !errors.As(err, &cmdErr) || cmdErr.HasErrorLabel("ResumableChangeStreamError")
		if cs.resumeToken == nil || !resumable {
			cs.err = err
			return false
		}
		if reopenErr := cs.open(ctx); reopenErr != nil {
			cs.err = err
			return false
		}
		return cs.cursor.Next(ctx)
	}
	return false
}

// Decode unmarshals the current change event into v.
func (cs *ChangeStream) Decode(v interface{}) error {
	return cs.cursor.Decode(v)
}

// Err returns the error, if any, that stopped Next from advancing.
func (cs *ChangeStream) Err() error {
	if cs.err != nil {
		return cs.err
	}
	return cs.cursor.Err()
}

// ResumeToken returns the most recently observed resume token, or nil if
// none has been seen yet.
func (cs *ChangeStream) ResumeToken() bson.Raw { return cs.resumeToken }

// Close closes the underlying cursor.
func (cs *ChangeStream) Close(ctx context.Context) error {
	return cs.cursor.Close(ctx)
}
