// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package mongo

import (
	"context"

	"github.com/brinkdb/mongowire/bson"
	"github.com/brinkdb/mongowire/mongo/options"
	"github.com/brinkdb/mongowire/mongo/readconcern"
	"github.com/brinkdb/mongowire/mongo/readpref"
	"github.com/brinkdb/mongowire/mongo/writeconcern"
	"github.com/brinkdb/mongowire/x/bsonx/bsoncore"
	"github.com/brinkdb/mongowire/x/mongo/driver"
	"github.com/brinkdb/mongowire/x/mongo/driver/operation"
	"github.com/brinkdb/mongowire/x/mongo/driver/topology"
)

// Collection is a handle to a MongoDB collection, the primary surface
// find/insert/update/delete/aggregate operations are issued against.
type Collection struct {
	db   *Database
	name string

	readPreference *readpref.ReadPref
	readConcern    *readconcern.ReadConcern
	writeConcern   *writeconcern.WriteConcern
}

// Name returns the name of the collection.
func (c *Collection) Name() string { return c.name }

// Database returns the Database this Collection was derived from.
func (c *Collection) Database() *Database { return c.db }

func (c *Collection) readSelector() *topology.ReadPrefSelector {
	return &topology.ReadPrefSelector{RP: c.readPreference.ToDescription()}
}

// InsertOneResult is the result of an InsertOne operation.
type InsertOneResult struct {
	InsertedID interface{}
}

// InsertOne inserts a single document into the collection, generating an
// ObjectID for _id if the document doesn't already carry one.
func (c *Collection) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptionsBuilder) (*InsertOneResult, error) {
	doc, err := transformDocument(document)
	if err != nil {
		return nil, err
	}
	doc, id, err := ensureID(doc)
	if err != nil {
		return nil, err
	}

	op := operation.NewInsert(doc).
		Collection(c.name).
		Database(c.db.name).
		Deployment(c.db.client.deployment).
		Ordered(true).
		Retry(driver.RetryOnce)
	if err := op.Execute(ctx); err != nil {
		return nil, err
	}
	return &InsertOneResult{InsertedID: id}, nil
}

// InsertManyResult is the result of an InsertMany operation.
type InsertManyResult struct {
	InsertedIDs []interface{}
}

// InsertMany inserts every document in documents, ordered by default
// (the server stops on the first error).
func (c *Collection) InsertMany(ctx context.Context, documents []interface{}, opts ...*options.InsertManyOptionsBuilder) (*InsertManyResult, error) {
	if len(documents) == 0 {
		return nil, ErrEmptySlice
	}

	docs := make([]bsoncore.Document, 0, len(documents))
	ids := make([]interface{}, 0, len(documents))
	for _, document := range documents {
		doc, err := transformDocument(document)
		if err != nil {
			return nil, err
		}
		doc, id, err := ensureID(doc)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
		ids = append(ids, id)
	}

	op := operation.NewInsert(docs...).
		Collection(c.name).
		Database(c.db.name).
		Deployment(c.db.client.deployment).
		Ordered(true).
		Retry(driver.RetryOnce)
	if err := op.Execute(ctx); err != nil {
		return nil, err
	}
	return &InsertManyResult{InsertedIDs: ids}, nil
}

func buildUpdateDoc(filter, update bsoncore.Document, multi bool, opts ...*options.UpdateOptions) bsoncore.Document {
	idx, dst := bsoncore.AppendDocumentStart(nil)
	dst = bsoncore.AppendDocumentElement(dst, "q", filter)
	dst = bsoncore.AppendDocumentElement(dst, "u", update)
	dst = bsoncore.AppendBooleanElement(dst, "multi", multi)
	for _, o := range opts {
		if o != nil && o.Upsert != nil {
			dst = bsoncore.AppendBooleanElement(dst, "upsert", *o.Upsert)
		}
	}
	return bsoncore.Document(bsoncore.AppendDocumentEnd(dst, idx))
}

// UpdateResult is the result of an update operation.
type UpdateResult struct {
	MatchedCount  int64
	ModifiedCount int64
	UpsertedCount int64
	UpsertedID    interface{}
}

func fromUpdateResult(r operation.UpdateResult) *UpdateResult {
	out := &UpdateResult{
		MatchedCount:  int64(r.N),
		ModifiedCount: int64(r.NModified),
	}
	if len(r.Upserted) > 0 {
		out.UpsertedCount = int64(len(r.Upserted))
		if doc := r.Upserted[0].Document(); doc != nil {
			if v, ok := doc.Lookup("_id"); ok {
				out.UpsertedID = idValue(v)
			}
		}
	}
	return out
}

// UpdateOne updates at most one document matching filter.
func (c *Collection) UpdateOne(ctx context.Context, filter, update interface{}, opts ...*options.UpdateOptions) (*UpdateResult, error) {
	return c.update(ctx, filter, update, false, opts...)
}

// UpdateMany updates every document matching filter.
func (c *Collection) UpdateMany(ctx context.Context, filter, update interface{}, opts ...*options.UpdateOptions) (*UpdateResult, error) {
	return c.update(ctx, filter, update, true, opts...)
}

func (c *Collection) update(ctx context.Context, filter, update interface{}, multi bool, opts ...*options.UpdateOptions) (*UpdateResult, error) {
	filterDoc, err := transformDocument(filter)
	if err != nil {
		return nil, err
	}
	updateDoc, err := transformDocument(update)
	if err != nil {
		return nil, err
	}

	op := operation.NewUpdate(buildUpdateDoc(filterDoc, updateDoc, multi, opts...)).
		Collection(c.name).
		Database(c.db.name).
		Deployment(c.db.client.deployment).
		Ordered(true).
		Retry(driver.RetryOnce)
	if err := op.Execute(ctx); err != nil {
		return nil, err
	}
	return fromUpdateResult(op.Result()), nil
}

// ReplaceOne replaces at most one document matching filter with replacement.
func (c *Collection) ReplaceOne(ctx context.Context, filter, replacement interface{}, opts ...*options.UpdateOptions) (*UpdateResult, error) {
	return c.update(ctx, filter, replacement, false, opts...)
}

// DeleteResult is the result of a delete operation.
type DeleteResult struct {
	DeletedCount int64
}

func buildDeleteDoc(filter bsoncore.Document, limit int32) bsoncore.Document {
	idx, dst := bsoncore.AppendDocumentStart(nil)
	dst = bsoncore.AppendDocumentElement(dst, "q", filter)
	dst = bsoncore.AppendInt32Element(dst, "limit", limit)
	return bsoncore.Document(bsoncore.AppendDocumentEnd(dst, idx))
}

// DeleteOne deletes at most one document matching filter.
func (c *Collection) DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*DeleteResult, error) {
	return c.delete(ctx, filter, 1, opts...)
}

// DeleteMany deletes every document matching filter.
func (c *Collection) DeleteMany(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*DeleteResult, error) {
	return c.delete(ctx, filter, 0, opts...)
}

func (c *Collection) delete(ctx context.Context, filter interface{}, limit int32, opts ...*options.DeleteOptions) (*DeleteResult, error) {
	filterDoc, err := transformDocument(filter)
	if err != nil {
		return nil, err
	}

	op := operation.NewDelete(buildDeleteDoc(filterDoc, limit)).
		Collection(c.name).
		Database(c.db.name).
		Deployment(c.db.client.deployment).
		Ordered(true).
		Retry(driver.RetryOnce)
	if err := op.Execute(ctx); err != nil {
		return nil, err
	}
	return &DeleteResult{DeletedCount: int64(op.Result().N)}, nil
}

// Find runs a query against the collection and returns a Cursor over the
// matching documents.
func (c *Collection) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*Cursor, error) {
	filterDoc, err := transformDocument(filter)
	if err != nil {
		return nil, err
	}

	op := operation.NewFind(filterDoc).
		Collection(c.name).
		Database(c.db.name).
		Deployment(c.db.client.deployment).
		ReadPreference(c.readPreference.ToDescription()).
		ServerSelector(c.readSelector())

	for _, o := range opts {
		if o == nil {
			continue
		}
		if o.Sort != nil {
			sortDoc, err := transformDocument(o.Sort)
			if err != nil {
				return nil, err
			}
			op.Sort(sortDoc)
		}
		if o.Projection != nil {
			projDoc, err := transformDocument(o.Projection)
			if err != nil {
				return nil, err
			}
			op.Projection(projDoc)
		}
		if o.Limit != nil {
			op.Limit(*o.Limit)
		}
		if o.Skip != nil {
			op.Skip(*o.Skip)
		}
		if o.BatchSize != nil {
			op.BatchSize(*o.BatchSize)
		}
	}

	if err := op.Execute(ctx); err != nil {
		return nil, err
	}
	bc, err := op.Result(driver.CursorOptions{})
	if err != nil {
		return nil, err
	}
	return newCursor(bc), nil
}

// FindOne runs a query limited to a single result, returning
// ErrNoDocuments via the returned SingleResult's Decode if nothing matched.
func (c *Collection) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *SingleResult {
	findOpts := options.Find()
	for _, o := range opts {
		if o == nil {
			continue
		}
		if o.Sort != nil {
			findOpts.SetSort(o.Sort)
		}
		if o.Projection != nil {
			findOpts.SetProjection(o.Projection)
		}
		if o.Skip != nil {
			findOpts.SetSkip(*o.Skip)
		}
	}
	findOpts.SetLimit(-1)

	cursor, err := c.Find(ctx, filter, findOpts)
	if err != nil {
		return &SingleResult{err: err}
	}
	defer cursor.Close(ctx)
	if !cursor.Next(ctx) {
		if err := cursor.Err(); err != nil {
			return &SingleResult{err: err}
		}
		return &SingleResult{err: ErrNoDocuments}
	}
	return &SingleResult{doc: cursor.Current()}
}

// SingleResult represents a single document result, as from FindOne or a
// FindOneAnd* operation.
type SingleResult struct {
	doc bsoncore.Document
	err error
}

// Decode unmarshals the result document into v, or returns the error (if
// any) that prevented a result from being produced.
func (sr *SingleResult) Decode(v interface{}) error {
	if sr.err != nil {
		return sr.err
	}
	return bson.Unmarshal(sr.doc, v)
}

// Err returns the error, if any, associated with this result.
func (sr *SingleResult) Err() error { return sr.err }

// Raw returns the raw result document and any error.
func (sr *SingleResult) Raw() (bsoncore.Document, error) { return sr.doc, sr.err }

// CountDocuments returns the number of documents matching filter via an
// aggregation pipeline, the server-recommended replacement for the
// deprecated count command.
func (c *Collection) CountDocuments(ctx context.Context, filter interface{}) (int64, error) {
	filterDoc, err := transformDocument(filter)
	if err != nil {
		return 0, err
	}

	idx, matchDst := bsoncore.AppendDocumentStart(nil)
	matchDst = bsoncore.AppendDocumentElement(matchDst, "$match", filterDoc)
	matchStage := bsoncore.Document(bsoncore.AppendDocumentEnd(matchDst, idx))

	idx, countDst := bsoncore.AppendDocumentStart(nil)
	countDst = bsoncore.AppendStringElement(countDst, "$count", "n")
	countStage := bsoncore.Document(bsoncore.AppendDocumentEnd(countDst, idx))

	arrIdx, arrDst := bsoncore.AppendDocumentStart(nil)
	arrDst = bsoncore.AppendDocumentElement(arrDst, "0", matchStage)
	arrDst = bsoncore.AppendDocumentElement(arrDst, "1", countStage)
	pipeline := bsoncore.Array(bsoncore.AppendDocumentEnd(arrDst, arrIdx))

	op := operation.NewCountDocuments(pipeline).
		Collection(c.name).
		Database(c.db.name).
		Deployment(c.db.client.deployment).
		ReadPreference(c.readPreference.ToDescription()).
		ServerSelector(c.readSelector())
	if err := op.Execute(ctx); err != nil {
		return 0, err
	}
	return op.Result(), nil
}

// Aggregate runs an aggregation pipeline and returns a Cursor over the
// resulting documents.
func (c *Collection) Aggregate(ctx context.Context, pipeline interface{}, opts ...*options.AggregateOptions) (*Cursor, error) {
	pipelineArr, err := transformAggregatePipeline(pipeline)
	if err != nil {
		return nil, err
	}

	op := operation.NewAggregate(pipelineArr).
		Collection(c.name).
		Database(c.db.name).
		Deployment(c.db.client.deployment).
		ReadPreference(c.readPreference.ToDescription()).
		ServerSelector(c.readSelector())
	for _, o := range opts {
		if o != nil && o.BatchSize != nil {
			op.BatchSize(*o.BatchSize)
		}
	}

	if err := op.Execute(ctx); err != nil {
		return nil, err
	}
	bc, err := op.Result(driver.CursorOptions{})
	if err != nil {
		return nil, err
	}
	return newCursor(bc), nil
}

// FindOneAndUpdate updates a single document matching filter and returns
// the pre-image.
func (c *Collection) FindOneAndUpdate(ctx context.Context, filter, update interface{}, opts ...*options.UpdateOptions) *SingleResult {
	return c.findAndModify(ctx, filter, update, false, opts...)
}

// FindOneAndReplace replaces a single document matching filter.
func (c *Collection) FindOneAndReplace(ctx context.Context, filter, replacement interface{}, opts ...*options.UpdateOptions) *SingleResult {
	return c.findAndModify(ctx, filter, replacement, false, opts...)
}

// FindOneAndDelete deletes a single document matching filter, returning it.
func (c *Collection) FindOneAndDelete(ctx context.Context, filter interface{}) *SingleResult {
	return c.findAndModify(ctx, filter, nil, true)
}

func (c *Collection) findAndModify(ctx context.Context, filter, update interface{}, remove bool, opts ...*options.UpdateOptions) *SingleResult {
	filterDoc, err := transformDocument(filter)
	if err != nil {
		return &SingleResult{err: err}
	}

	op := operation.NewFindAndModify(filterDoc).
		Collection(c.name).
		Database(c.db.name).
		Deployment(c.db.client.deployment).
		Retry(driver.RetryOnce).
		ServerSelector(c.readSelector())

	if remove {
		op.Remove(true)
	} else {
		updateDoc, err := transformDocument(update)
		if err != nil {
			return &SingleResult{err: err}
		}
		op.Update(updateDoc)
		for _, o := range opts {
			if o == nil {
				continue
			}
			if o.Upsert != nil {
				op.Upsert(*o.Upsert)
			}
		}
	}

	if err := op.Execute(ctx); err != nil {
		return &SingleResult{err: err}
	}
	doc := op.Result()
	if doc == nil {
		return &SingleResult{err: ErrNoDocuments}
	}
	return &SingleResult{doc: doc}
}

// Drop drops the collection.
func (c *Collection) Drop(ctx context.Context) error {
	_, err := c.db.RunCommand(ctx, map[string]interface{}{"drop": c.name})
	return err
}
