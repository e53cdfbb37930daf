package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"vidtube/internal/domain/models"
	"vidtube/internal/storage"
)

type Storage struct {
	client        *mongo.Client
	database      *mongo.Database
	users         *mongo.Collection
	videos        *mongo.Collection
	subscriptions *mongo.Collection
}

type userDoc struct {
	ID           string    `bson:"_id"`
	Username     string    `bson:"username"`
	Email        string    `bson:"email"`
	FullName     string    `bson:"full_name"`
	PassHash     []byte    `bson:"pass_hash"`
	Avatar       string    `bson:"avatar"`
	CoverImage   string    `bson:"cover_image,omitempty"`
	WatchHistory []string  `bson:"watch_history"`
	RefreshToken *string   `bson:"refresh_token,omitempty"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

type videoDoc struct {
	ID          string    `bson:"_id"`
	VideoFile   string    `bson:"video_file"`
	Thumbnail   string    `bson:"thumbnail"`
	Title       string    `bson:"title"`
	Description string    `bson:"description"`
	Duration    float64   `bson:"duration"`
	Views       int64     `bson:"views"`
	IsPublished bool      `bson:"is_published"`
	Owner       string    `bson:"owner"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

type subscriptionDoc struct {
	Subscriber string    `bson:"subscriber"`
	Channel    string    `bson:"channel"`
	CreatedAt  time.Time `bson:"created_at"`
}

// historyVideoDoc is a videoDoc after the owner $lookup.
type historyVideoDoc struct {
	ID          string    `bson:"_id"`
	VideoFile   string    `bson:"video_file"`
	Thumbnail   string    `bson:"thumbnail"`
	Title       string    `bson:"title"`
	Description string    `bson:"description"`
	Duration    float64   `bson:"duration"`
	Views       int64     `bson:"views"`
	IsPublished bool      `bson:"is_published"`
	CreatedAt   time.Time `bson:"created_at"`
	Owner       struct {
		ID       string `bson:"_id"`
		Username string `bson:"username"`
		FullName string `bson:"full_name"`
		Avatar   string `bson:"avatar"`
	} `bson:"owner"`
}

type channelDoc struct {
	ID                        string `bson:"_id"`
	Username                  string `bson:"username"`
	Email                     string `bson:"email"`
	FullName                  string `bson:"full_name"`
	Avatar                    string `bson:"avatar"`
	CoverImage                string `bson:"cover_image"`
	SubscribersCount          int64  `bson:"subscribers_count"`
	ChannelsSubscribedToCount int64  `bson:"channels_subscribed_to_count"`
	IsSubscribed              bool   `bson:"is_subscribed"`
}

// New creates a new MongoDB storage instance and sets up indexes.
func New(ctx context.Context, uri, database string) (*Storage, error) {
	const op = "storage.mongodb.New"

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("%s: connect: %w", op, err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("%s: ping: %w", op, err)
	}

	db := client.Database(database)
	s := &Storage{
		client:        client,
		database:      db,
		users:         db.Collection("users"),
		videos:        db.Collection("videos"),
		subscriptions: db.Collection("subscriptions"),
	}

	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("%s: indexes: %w", op, err)
	}

	return s, nil
}

func (s *Storage) ensureIndexes(ctx context.Context) error {
	// users.username unique
	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("users.username index: %w", err)
	}

	// users.email unique
	_, err = s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("users.email index: %w", err)
	}

	// users.full_name
	_, err = s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "full_name", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("users.full_name index: %w", err)
	}

	// subscriptions (subscriber, channel) unique
	_, err = s.subscriptions.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "subscriber", Value: 1}, {Key: "channel", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("subscriptions.subscriber_channel index: %w", err)
	}

	// subscriptions.channel for subscriber counts
	_, err = s.subscriptions.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "channel", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("subscriptions.channel index: %w", err)
	}

	// videos.owner
	_, err = s.videos.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "owner", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("videos.owner index: %w", err)
	}

	return nil
}

// Close disconnects from MongoDB.
func (s *Storage) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// SaveUser inserts a new account. The unique indexes on username and email
// decide races between concurrent registrations.
func (s *Storage) SaveUser(ctx context.Context, user models.User) error {
	const op = "storage.mongodb.SaveUser"

	now := time.Now().UTC()
	history := user.WatchHistory
	if history == nil {
		history = []string{}
	}

	doc := userDoc{
		ID:           user.ID,
		Username:     user.Username,
		Email:        user.Email,
		FullName:     user.FullName,
		PassHash:     user.PassHash,
		Avatar:       user.Avatar,
		CoverImage:   user.CoverImage,
		WatchHistory: history,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if user.RefreshToken != "" {
		doc.RefreshToken = &user.RefreshToken
	}

	_, err := s.users.InsertOne(ctx, doc)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("%s: %w", op, storage.ErrUserExists)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// User retrieves an account by username or email.
func (s *Storage) User(ctx context.Context, identity string) (models.User, error) {
	const op = "storage.mongodb.User"

	filter := bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "username", Value: identity}},
		bson.D{{Key: "email", Value: identity}},
	}}}

	user, err := s.findUser(ctx, filter)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// UserByID retrieves an account by ID.
func (s *Storage) UserByID(ctx context.Context, userID string) (models.User, error) {
	const op = "storage.mongodb.UserByID"

	user, err := s.findUser(ctx, bson.D{{Key: "_id", Value: userID}})
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (s *Storage) findUser(ctx context.Context, filter bson.D) (models.User, error) {
	var doc userDoc
	err := s.users.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, storage.ErrUserNotFound
		}
		return models.User{}, err
	}

	return doc.toModel(), nil
}

// UpdateUser applies upd as a single-document update. Only the fields set in
// upd are written, so no required-field revalidation takes place.
func (s *Storage) UpdateUser(ctx context.Context, userID string, upd storage.UserUpdate) error {
	const op = "storage.mongodb.UpdateUser"

	set := bson.D{{Key: "updated_at", Value: time.Now().UTC()}}
	unset := bson.D{}

	if upd.PassHash != nil {
		set = append(set, bson.E{Key: "pass_hash", Value: upd.PassHash})
	}
	if upd.Avatar != nil {
		set = append(set, bson.E{Key: "avatar", Value: *upd.Avatar})
	}
	if upd.CoverImage != nil {
		set = append(set, bson.E{Key: "cover_image", Value: *upd.CoverImage})
	}
	if upd.RefreshToken != nil {
		if *upd.RefreshToken == "" {
			unset = append(unset, bson.E{Key: "refresh_token", Value: ""})
		} else {
			set = append(set, bson.E{Key: "refresh_token", Value: *upd.RefreshToken})
		}
	}

	update := bson.D{{Key: "$set", Value: set}}
	if len(unset) > 0 {
		update = append(update, bson.E{Key: "$unset", Value: unset})
	}

	res, err := s.users.UpdateOne(ctx, bson.D{{Key: "_id", Value: userID}}, update)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}

	return nil
}

// ChannelProfile joins the account to its subscription edges and projects
// the counts.
func (s *Storage) ChannelProfile(ctx context.Context, username, viewerID string) (models.Channel, error) {
	const op = "storage.mongodb.ChannelProfile"

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "username", Value: username}}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: "subscriptions"},
			{Key: "localField", Value: "_id"},
			{Key: "foreignField", Value: "channel"},
			{Key: "as", Value: "subscribers"},
		}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: "subscriptions"},
			{Key: "localField", Value: "_id"},
			{Key: "foreignField", Value: "subscriber"},
			{Key: "as", Value: "subscribed_to"},
		}}},
		{{Key: "$addFields", Value: bson.D{
			{Key: "subscribers_count", Value: bson.D{{Key: "$size", Value: "$subscribers"}}},
			{Key: "channels_subscribed_to_count", Value: bson.D{{Key: "$size", Value: "$subscribed_to"}}},
			{Key: "is_subscribed", Value: bson.D{{Key: "$in", Value: bson.A{viewerID, "$subscribers.subscriber"}}}},
		}}},
		{{Key: "$project", Value: bson.D{
			{Key: "username", Value: 1},
			{Key: "email", Value: 1},
			{Key: "full_name", Value: 1},
			{Key: "avatar", Value: 1},
			{Key: "cover_image", Value: 1},
			{Key: "subscribers_count", Value: 1},
			{Key: "channels_subscribed_to_count", Value: 1},
			{Key: "is_subscribed", Value: 1},
		}}},
	}

	cursor, err := s.users.Aggregate(ctx, pipeline)
	if err != nil {
		return models.Channel{}, fmt.Errorf("%s: %w", op, err)
	}

	var docs []channelDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return models.Channel{}, fmt.Errorf("%s: decode: %w", op, err)
	}
	if len(docs) == 0 {
		return models.Channel{}, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}

	d := docs[0]
	return models.Channel{
		ID:                        d.ID,
		Username:                  d.Username,
		Email:                     d.Email,
		FullName:                  d.FullName,
		Avatar:                    d.Avatar,
		CoverImage:                d.CoverImage,
		SubscribersCount:          d.SubscribersCount,
		ChannelsSubscribedToCount: d.ChannelsSubscribedToCount,
		IsSubscribed:              d.IsSubscribed,
	}, nil
}

// WatchHistory resolves the account's watch_history into videos, each joined
// with a projection of its owner. Order follows watch_history.
func (s *Storage) WatchHistory(ctx context.Context, userID string) ([]models.Video, error) {
	const op = "storage.mongodb.WatchHistory"

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "_id", Value: userID}}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: "videos"},
			{Key: "localField", Value: "watch_history"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "history"},
			{Key: "pipeline", Value: mongo.Pipeline{
				{{Key: "$lookup", Value: bson.D{
					{Key: "from", Value: "users"},
					{Key: "localField", Value: "owner"},
					{Key: "foreignField", Value: "_id"},
					{Key: "as", Value: "owner"},
					{Key: "pipeline", Value: mongo.Pipeline{
						{{Key: "$project", Value: bson.D{
							{Key: "username", Value: 1},
							{Key: "full_name", Value: 1},
							{Key: "avatar", Value: 1},
						}}},
					}},
				}}},
				{{Key: "$addFields", Value: bson.D{
					{Key: "owner", Value: bson.D{{Key: "$first", Value: "$owner"}}},
				}}},
			}},
		}}},
		{{Key: "$project", Value: bson.D{
			{Key: "watch_history", Value: 1},
			{Key: "history", Value: 1},
		}}},
	}

	cursor, err := s.users.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var docs []struct {
		WatchHistory []string          `bson:"watch_history"`
		History      []historyVideoDoc `bson:"history"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", op, err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}

	// $lookup on an array does not keep the array order.
	byID := make(map[string]historyVideoDoc, len(docs[0].History))
	for _, v := range docs[0].History {
		byID[v.ID] = v
	}

	videos := make([]models.Video, 0, len(docs[0].WatchHistory))
	for _, id := range docs[0].WatchHistory {
		v, ok := byID[id]
		if !ok {
			continue
		}
		videos = append(videos, models.Video{
			ID:          v.ID,
			VideoFile:   v.VideoFile,
			Thumbnail:   v.Thumbnail,
			Title:       v.Title,
			Description: v.Description,
			Duration:    v.Duration,
			Views:       v.Views,
			IsPublished: v.IsPublished,
			OwnerID:     v.Owner.ID,
			Owner: models.VideoOwner{
				ID:       v.Owner.ID,
				Username: v.Owner.Username,
				FullName: v.Owner.FullName,
				Avatar:   v.Owner.Avatar,
			},
			CreatedAt: v.CreatedAt,
		})
	}

	return videos, nil
}

// SaveVideo inserts a video (for seeding and tests).
func (s *Storage) SaveVideo(ctx context.Context, video models.Video) error {
	const op = "storage.mongodb.SaveVideo"

	now := time.Now().UTC()
	if video.CreatedAt.IsZero() {
		video.CreatedAt = now
	}

	_, err := s.videos.InsertOne(ctx, videoDoc{
		ID:          video.ID,
		VideoFile:   video.VideoFile,
		Thumbnail:   video.Thumbnail,
		Title:       video.Title,
		Description: video.Description,
		Duration:    video.Duration,
		Views:       video.Views,
		IsPublished: video.IsPublished,
		Owner:       video.OwnerID,
		CreatedAt:   video.CreatedAt,
		UpdatedAt:   now,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Subscribe records a subscription edge. An existing edge is left as is.
func (s *Storage) Subscribe(ctx context.Context, subscriberID, channelID string) error {
	const op = "storage.mongodb.Subscribe"

	_, err := s.subscriptions.InsertOne(ctx, subscriptionDoc{
		Subscriber: subscriberID,
		Channel:    channelID,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// AddToWatchHistory appends videoID to the account's watch history.
func (s *Storage) AddToWatchHistory(ctx context.Context, userID, videoID string) error {
	const op = "storage.mongodb.AddToWatchHistory"

	res, err := s.users.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: userID}},
		bson.D{
			{Key: "$push", Value: bson.D{{Key: "watch_history", Value: videoID}}},
			{Key: "$set", Value: bson.D{{Key: "updated_at", Value: time.Now().UTC()}}},
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}

	return nil
}

func (d userDoc) toModel() models.User {
	u := models.User{
		ID:           d.ID,
		Username:     d.Username,
		Email:        d.Email,
		FullName:     d.FullName,
		PassHash:     d.PassHash,
		Avatar:       d.Avatar,
		CoverImage:   d.CoverImage,
		WatchHistory: d.WatchHistory,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
	if d.RefreshToken != nil {
		u.RefreshToken = *d.RefreshToken
	}
	return u
}

// isDuplicateKeyError checks if the error is a MongoDB duplicate key error (code 11000).
func isDuplicateKeyError(err error) bool {
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	return false
}
