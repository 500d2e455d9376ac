package persistence

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dharmendrakumar4525/avidus-askdb/modules/askdb/domain/ports"
	"github.com/dharmendrakumar4525/avidus-askdb/modules/askdb/domain/types"
)

// MongoStore is the read-only document store adapter. Find is the only
// capability it exposes; there is deliberately no path to writes or
// administrative commands.
type MongoStore struct {
	db *mongo.Database
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db}
}

func (s *MongoStore) Find(ctx context.Context, req ports.FindRequest) ([]map[string]any, error) {
	projection := bson.M{}
	for _, field := range req.Projection {
		projection[field] = 1
	}
	if req.SuppressID {
		projection["_id"] = 0
	}

	opts := options.Find().
		SetLimit(req.Limit).
		SetProjection(projection)

	cursor, err := s.db.Collection(req.Collection).Find(ctx, FilterToBSON(req.Filter), opts)
	if err != nil {
		return nil, err
	}
	defer func() { _ = cursor.Close(context.Background()) }()

	var out []map[string]any
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FilterToBSON compiles a sanitized filter tree to a BSON document. A nil
// filter matches everything; MatchNone compiles to a predicate that matches
// no document in any collection.
func FilterToBSON(f types.Filter) bson.M {
	switch node := f.(type) {
	case nil:
		return bson.M{}
	case types.FieldMatch:
		// Always go through the explicit operator form. The shorthand
		// {field: value} lets a map-typed value smuggle its own $-keys in as
		// query operators; {field: {"$eq": value}} compares the document
		// operand literally.
		return bson.M{node.Field: bson.M{string(node.Op): node.Value}}
	case types.And:
		return logicalToBSON("$and", node.Children)
	case types.Or:
		return logicalToBSON("$or", node.Children)
	case types.MatchNone:
		return bson.M{"_id": bson.M{"$in": bson.A{}}}
	default:
		// Unknown node kinds must not widen the query.
		return bson.M{"_id": bson.M{"$in": bson.A{}}}
	}
}

func logicalToBSON(op string, children []types.Filter) bson.M {
	if len(children) == 0 {
		return bson.M{}
	}
	if len(children) == 1 {
		return FilterToBSON(children[0])
	}
	parts := make([]bson.M, 0, len(children))
	for _, child := range children {
		parts = append(parts, FilterToBSON(child))
	}
	return bson.M{op: parts}
}
