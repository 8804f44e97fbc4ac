package db

import (
	"context"
	"log"
	"net/url"
	"os"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func ConnectToDB() (*mongo.Database, context.CancelFunc, error) {
	mongoURI := os.Getenv("MONGODB_URI")

	uri, err := url.Parse(mongoURI)
	if err != nil {
		log.Fatalf("Error parsing MongoDB URI: %v", err)
		return nil, nil, err
	}

	dbName := strings.TrimPrefix(uri.Path, "/")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		log.Fatalf("Error connecting to MongoDB: %v", err)
		return nil, nil, err
	}

	if err := client.Ping(ctx, nil); err != nil {
		log.Fatalf("Error pinging MongoDB: %v", err)
		return nil, nil, err
	}

	db := client.Database(dbName)

	return db, cancel, nil
}

// EnsurePlayerIndexes creates the per-game unique name index used to reject
// duplicate display names at the store level.
func EnsurePlayerIndexes(db *mongo.Database) {
	collection := db.Collection("players")

	indexModel := mongo.IndexModel{
		Keys:    bson.D{{Key: "game_id", Value: 1}, {Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	}

	_, err := collection.Indexes().CreateOne(context.TODO(), indexModel)
	if err != nil {
		log.Fatal(err)
	}
}

// EnsureRoundIndexes indexes rounds by game and open flag so the
// one-open-round lookup stays cheap.
func EnsureRoundIndexes(db *mongo.Database) {
	collection := db.Collection("rounds")

	indexModel := mongo.IndexModel{
		Keys: bson.D{{Key: "game_id", Value: 1}, {Key: "active", Value: 1}},
	}

	_, err := collection.Indexes().CreateOne(context.TODO(), indexModel)
	if err != nil {
		log.Fatal(err)
	}
}
