package repository

import (
	"context"
	"errors"
	"fmt"

	"conversation_sync_service/internal/conversation/domain"
	errprocess "conversation_sync_service/pkg/err"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection        = "directory_users"
	participantsCollection = "directory_participants"
)

// userDocument 以 owner 區分不同會員的目錄
type userDocument struct {
	ID    string      `bson:"_id"`
	Owner string      `bson:"owner"`
	User  domain.User `bson:"user"`
}

type participantsDocument struct {
	ID             string   `bson:"_id"`
	Owner          string   `bson:"owner"`
	ConversationID int64    `bson:"conversation_id"`
	UserIDs        []string `bson:"user_ids"`
}

type mongoUserDirectory struct {
	meID             string
	usersColl        *mongo.Collection
	participantsColl *mongo.Collection
}

// NewMongoUserDirectory create mongo UserDirectory for the member meID
func NewMongoUserDirectory(db *mongo.Database, meID string) UserDirectory {
	return &mongoUserDirectory{
		meID:             meID,
		usersColl:        db.Collection(usersCollection),
		participantsColl: db.Collection(participantsCollection),
	}
}

func (d *mongoUserDirectory) userKey(userID string) string {
	return d.meID + ":" + userID
}

func (d *mongoUserDirectory) participantsKey(conversationID int64) string {
	return fmt.Sprintf("%s:%d", d.meID, conversationID)
}

// FindByID find user by id
func (d *mongoUserDirectory) FindByID(ctx context.Context, userID string) (*domain.User, error) {
	var doc userDocument
	err := d.usersColl.FindOne(ctx, bson.M{"_id": d.userKey(userID)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, errprocess.Wrap("find directory user", err)
	}
	return &doc.User, nil
}

// FindMe find owner of the directory
func (d *mongoUserDirectory) FindMe(ctx context.Context) (*domain.User, error) {
	return d.FindByID(ctx, d.meID)
}

// FindParticipants participants in insertion order, limit <= 0 means all
func (d *mongoUserDirectory) FindParticipants(ctx context.Context, conversationID int64, limit int) ([]domain.User, error) {
	var doc participantsDocument
	err := d.participantsColl.FindOne(ctx, bson.M{"_id": d.participantsKey(conversationID)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return []domain.User{}, nil
	}
	if err != nil {
		return nil, errprocess.Wrap("find participants", err)
	}

	keys := make([]string, len(doc.UserIDs))
	for i, id := range doc.UserIDs {
		keys[i] = d.userKey(id)
	}

	cursor, err := d.usersColl.Find(ctx, bson.M{"_id": bson.M{"$in": keys}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []userDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	byID := make(map[string]domain.User, len(docs))
	for _, u := range docs {
		byID[u.User.ID] = u.User
	}

	// $in 不保證順序，依 user_ids 排回
	users := make([]domain.User, 0, len(doc.UserIDs))
	for _, id := range doc.UserIDs {
		if limit > 0 && len(users) >= limit {
			break
		}
		if u, ok := byID[id]; ok {
			users = append(users, u)
		}
	}
	return users, nil
}

// Upsert insert or replace user
func (d *mongoUserDirectory) Upsert(ctx context.Context, user domain.User) error {
	if user.ID == "" {
		return nil
	}
	user.IsMe = user.ID == d.meID
	doc := userDocument{ID: d.userKey(user.ID), Owner: d.meID, User: user}
	_, err := d.usersColl.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

// UpsertParticipants upsert users and append them to the conversation participants
func (d *mongoUserDirectory) UpsertParticipants(ctx context.Context, conversationID int64, users []domain.User) error {
	ids := make([]string, 0, len(users))
	for _, u := range users {
		if err := d.Upsert(ctx, u); err != nil {
			return err
		}
		if u.ID != "" {
			ids = append(ids, u.ID)
		}
	}

	filter := bson.M{"_id": d.participantsKey(conversationID)}
	update := bson.M{
		"$set":      bson.M{"owner": d.meID, "conversation_id": conversationID},
		"$addToSet": bson.M{"user_ids": bson.M{"$each": ids}},
	}
	_, err := d.participantsColl.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

// Clear delete everything of the owner
func (d *mongoUserDirectory) Clear(ctx context.Context) error {
	if _, err := d.usersColl.DeleteMany(ctx, bson.M{"owner": d.meID}); err != nil {
		return errprocess.Wrap("clear directory users", err)
	}
	_, err := d.participantsColl.DeleteMany(ctx, bson.M{"owner": d.meID})
	return errprocess.Wrap("clear directory participants", err)
}
