package services

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/example/froydpay/internal/providers"
)

const providerEventsCollection = "provider_events"

// MongoEventJournal archives provider events in MongoDB. It is used instead
// of the SQL journal when MONGO_URI is configured.
type MongoEventJournal struct {
	coll *mongo.Collection
	now  func() time.Time
}

type mongoProviderEvent struct {
	Provider     string     `bson:"provider"`
	EventID      string     `bson:"event_id"`
	EventType    string     `bson:"event_type"`
	ProviderTxID string     `bson:"provider_tx_id,omitempty"`
	Outcome      string     `bson:"outcome"`
	Payload      string     `bson:"payload"`
	ReceivedAt   time.Time  `bson:"received_at"`
	ProcessedAt  *time.Time `bson:"processed_at,omitempty"`
	ProcessError string     `bson:"process_error,omitempty"`
}

// NewMongoEventJournal prepares the collection and its unique index.
func NewMongoEventJournal(ctx context.Context, db *mongo.Database) (*MongoEventJournal, error) {
	coll := db.Collection(providerEventsCollection)

	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "provider", Value: 1}, {Key: "event_id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("provider_event_unique"),
	})
	if err != nil {
		return nil, fmt.Errorf("create provider_events index: %w", err)
	}

	return &MongoEventJournal{coll: coll, now: time.Now}, nil
}

func (j *MongoEventJournal) Record(ctx context.Context, provider string, ev providers.Event, payload []byte) (bool, error) {
	doc := mongoProviderEvent{
		Provider:     provider,
		EventID:      ev.ID,
		EventType:    ev.Type,
		ProviderTxID: ev.ProviderTxID,
		Outcome:      string(ev.Outcome),
		Payload:      string(payload),
		ReceivedAt:   j.now().UTC(),
	}

	if _, err := j.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return true, nil
		}
		return false, err
	}
	return false, nil
}

func (j *MongoEventJournal) MarkProcessed(ctx context.Context, provider, eventID string, processErr error) error {
	set := bson.M{"processed_at": j.now().UTC()}
	if processErr != nil {
		set["process_error"] = truncate(processErr.Error(), 1024)
	}

	_, err := j.coll.UpdateOne(ctx,
		bson.M{"provider": provider, "event_id": eventID},
		bson.M{"$set": set},
	)
	return err
}
