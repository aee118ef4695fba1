package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/spec-kit/ticket-sla/internal/domain"
)

type mongoTicketDocument struct {
	ID        string                    `bson:"_id"`
	Ticket    domain.Ticket             `bson:"ticket"`
	AutoClose *domain.AutoCloseTracking `bson:"auto_close,omitempty"`
}

type mongoTicketRepository struct {
	coll *mongo.Collection
}

// NewMongoTicketRepository stores one document per ticket keyed by ticket id.
func NewMongoTicketRepository(db *mongo.Database, collection string) TicketRepository {
	return &mongoTicketRepository{coll: db.Collection(collection)}
}

// EnsureMongoIndexes creates the lookup indexes used by Find.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database, collection string) error {
	_, err := db.Collection(collection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "ticket.team", Value: 1}, {Key: "ticket.status", Value: 1}}},
		{Keys: bson.D{{Key: "ticket.creator", Value: 1}}},
		{Keys: bson.D{{Key: "ticket.assignee", Value: 1}}},
		{Keys: bson.D{{Key: "ticket.sla_deadline", Value: 1}}},
	})
	return err
}

func (r *mongoTicketRepository) Upsert(ctx context.Context, record domain.TicketRecord) error {
	doc := mongoTicketDocument{ID: record.Ticket.ID, Ticket: record.Ticket, AutoClose: record.AutoClose}
	_, err := r.coll.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert ticket %s: %w", doc.ID, err)
	}
	return nil
}

func (r *mongoTicketRepository) Find(ctx context.Context, filter TicketFilter) ([]domain.TicketRecord, error) {
	query := bson.M{}
	if filter.Team != nil {
		query["ticket.team"] = *filter.Team
	}
	if filter.Creator != nil {
		query["ticket.creator"] = *filter.Creator
	}
	if filter.Assignee != nil {
		query["ticket.assignee"] = *filter.Assignee
	}
	if len(filter.Statuses) > 0 {
		query["ticket.status"] = bson.M{"$in": filter.Statuses}
	}

	opts := options.Find().SetSort(bson.D{{Key: "ticket.created_at", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	cursor, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []mongoTicketDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode tickets: %w", err)
	}
	records := make([]domain.TicketRecord, 0, len(docs))
	for _, d := range docs {
		records = append(records, domain.TicketRecord{Ticket: d.Ticket, AutoClose: d.AutoClose})
	}
	return records, nil
}

func (r *mongoTicketRepository) Delete(ctx context.Context, ticketID string) (bool, error) {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": ticketID})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}
