package mgo

import (
	"context"
	"time"

	"PShop/service/chat"
	"PShop/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const ConnEventCollection = "conn_events"

type connEventDoc struct {
	Kind      string    `bson:"kind"`
	ConnID    string    `bson:"conn_id"`
	UserID    string    `bson:"user_id,omitempty"`
	Device    string    `bson:"device,omitempty"`
	GatewayID string    `bson:"gateway_id"`
	Reason    string    `bson:"reason,omitempty"`
	At        time.Time `bson:"at"`
}

// ConnAudit appends gateway lifecycle events to conn_events. Writes made
// before the manager is ready fail fast instead of queueing.
type ConnAudit struct {
	mgr *MongoManager
}

func NewConnAudit(mgr *MongoManager) *ConnAudit { return &ConnAudit{mgr: mgr} }

func (a *ConnAudit) GetTableName() string { return ConnEventCollection }

// Collection is nil while mongo is down.
func (a *ConnAudit) Collection() *mongo.Collection {
	db, ok := a.mgr.TryGetDB()
	if !ok {
		return nil
	}
	return db.Collection(ConnEventCollection)
}

func (a *ConnAudit) Record(ctx context.Context, ev chat.ConnEvent) error {
	coll := a.Collection()
	if coll == nil {
		return errs.New("mongo not ready", "lastErr", a.mgr.Err())
	}
	_, err := coll.InsertOne(ctx, connEventDoc{
		Kind:      ev.Kind,
		ConnID:    ev.ConnID,
		UserID:    ev.UserID,
		Device:    ev.Device,
		GatewayID: ev.GatewayID,
		Reason:    ev.Reason,
		At:        ev.At,
	})
	if err != nil {
		return errs.WrapMsg(err, "insert conn event", "kind", ev.Kind, "conn", ev.ConnID)
	}
	return nil
}

// EnsureIndexes creates the lookup indexes; ttl<=0 keeps events forever.
func (a *ConnAudit) EnsureIndexes(ctx context.Context, ttl time.Duration) error {
	coll := a.Collection()
	if coll == nil {
		return errs.New("mongo not ready")
	}
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "at", Value: -1}}},
		{Keys: bson.D{{Key: "conn_id", Value: 1}}},
	}
	if ttl > 0 {
		models = append(models, mongo.IndexModel{
			Keys:    bson.D{{Key: "at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(ttl / time.Second)),
		})
	}
	if _, err := coll.Indexes().CreateMany(ctx, models); err != nil {
		return errs.WrapMsg(err, "create conn_events indexes")
	}
	return nil
}

// History returns the newest events for a user.
func (a *ConnAudit) History(ctx context.Context, userID string, limit int64) ([]chat.ConnEvent, error) {
	coll := a.Collection()
	if coll == nil {
		return nil, errs.New("mongo not ready")
	}
	if limit <= 0 {
		limit = 50
	}
	cur, err := coll.Find(ctx, bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "at", Value: -1}}).SetLimit(limit))
	if err != nil {
		return nil, errs.WrapMsg(err, "find conn events", "user", userID)
	}
	var docs []connEventDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errs.WrapMsg(err, "decode conn events")
	}
	out := make([]chat.ConnEvent, 0, len(docs))
	for _, d := range docs {
		out = append(out, chat.ConnEvent{
			Kind: d.Kind, ConnID: d.ConnID, UserID: d.UserID, Device: d.Device,
			GatewayID: d.GatewayID, Reason: d.Reason, At: d.At,
		})
	}
	return out, nil
}
