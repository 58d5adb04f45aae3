package database

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// UnitOfWork manages MongoDB transactions
type UnitOfWork struct {
	client        *mongo.Client
	maxCommitTime time.Duration
}

// NewUnitOfWork creates a new Unit of Work instance. A zero maxCommitTime
// leaves the server default in place.
func NewUnitOfWork(client *mongo.Client, maxCommitTime time.Duration) *UnitOfWork {
	return &UnitOfWork{
		client:        client,
		maxCommitTime: maxCommitTime,
	}
}

// WithTransaction executes fn within a MongoDB transaction. fn receives the
// session context, which must be handed to every repository call that takes
// part in the transaction. The transaction commits when fn returns nil and is
// aborted otherwise; fn's error is returned unchanged.
//
// The driver re-runs fn on transient transaction errors (e.g. write
// conflicts with a concurrent transaction), so fn must not have side effects
// outside the session.
func (uow *UnitOfWork) WithTransaction(ctx context.Context, fn func(txCtx context.Context) error) error {
	session, err := uow.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	txOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())
	if uow.maxCommitTime > 0 {
		txOpts.SetMaxCommitTime(&uow.maxCommitTime)
	}

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	}, txOpts)

	return err
}
