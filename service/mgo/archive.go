package mgo

import (
	"context"
	"encoding/json"
	"time"

	"PShop/service/chat"
	"PShop/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const ChatMessageCollection = "chat_messages"

type chatMessageDoc struct {
	ConnID   string    `bson:"conn_id"`
	UserID   string    `bson:"user_id"`
	FullName string    `bson:"full_name"`
	Message  string    `bson:"message"`
	Gateway  string    `bson:"gateway_id"`
	At       time.Time `bson:"at"`
}

// ChatArchive stores relayed chat lines consumed from the event bus.
type ChatArchive struct {
	mgr *MongoManager
}

func NewChatArchive(mgr *MongoManager) *ChatArchive { return &ChatArchive{mgr: mgr} }

func (a *ChatArchive) GetTableName() string { return ChatMessageCollection }

func (a *ChatArchive) Collection() *mongo.Collection {
	db, ok := a.mgr.TryGetDB()
	if !ok {
		return nil
	}
	return db.Collection(ChatMessageCollection)
}

// Save decodes a SubjectMessage payload and inserts it.
func (a *ChatArchive) Save(ctx context.Context, data []byte) error {
	var ev chat.ChatEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return errs.ErrArgs.WrapMsg("decode chat event", "err", err)
	}
	coll := a.Collection()
	if coll == nil {
		return errs.New("mongo not ready")
	}
	_, err := coll.InsertOne(ctx, chatMessageDoc{
		ConnID:   ev.ConnID,
		UserID:   ev.UserID,
		FullName: ev.FullName,
		Message:  ev.Message,
		Gateway:  ev.Gateway,
		At:       time.UnixMilli(ev.At),
	})
	if err != nil {
		return errs.WrapMsg(err, "insert chat message", "conn", ev.ConnID)
	}
	return nil
}

// Recent returns the newest lines, newest first.
func (a *ChatArchive) Recent(ctx context.Context, limit int64) ([]chat.ChatEvent, error) {
	coll := a.Collection()
	if coll == nil {
		return nil, errs.New("mongo not ready")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	cur, err := coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "at", Value: -1}}).SetLimit(limit))
	if err != nil {
		return nil, errs.WrapMsg(err, "find chat messages")
	}
	var docs []chatMessageDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errs.WrapMsg(err, "decode chat messages")
	}
	out := make([]chat.ChatEvent, 0, len(docs))
	for _, d := range docs {
		out = append(out, chat.ChatEvent{
			ConnID: d.ConnID, UserID: d.UserID, FullName: d.FullName,
			Message: d.Message, Gateway: d.Gateway, At: d.At.UnixMilli(),
		})
	}
	return out, nil
}
