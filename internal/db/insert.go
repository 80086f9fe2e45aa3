package db

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
)

// InsertOne builds a document with build and inserts it, rebuilding and
// retrying on duplicate key errors so a fresh id is drawn each attempt.
// It returns the document that was finally stored.
func InsertOne[T any](ctx context.Context, coll *mongo.Collection, build func() *T) (*T, error) {
	var doc *T
	err := Try(func() error {
		doc = build()
		_, err := coll.InsertOne(ctx, doc)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("insert into %s: %w", coll.Name(), err)
	}
	return doc, nil
}
