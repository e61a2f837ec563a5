// internal/app/system/validators/validators.go
package validators

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// intType matches Go ints, which the driver writes as int32 or int64.
var intType = bson.A{"int", "long"}

// EnsureAll creates the collections (if missing) and attaches JSON-Schema
// validators. Servers without collMod/validators (some DocumentDB versions)
// are logged and skipped.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	ensure := func(coll string, schema bson.M) {
		if _, err := ensureCollection(ctx, db, coll); err != nil {
			problems = append(problems, coll+": "+err.Error())
			return
		}
		if schema == nil {
			return
		}
		if err := setValidator(ctx, db, coll, schema); err != nil {
			if isNoSuchCommand(err) || isNotImplemented(err) {
				zap.L().Info("validator skipped (unsupported)", zap.String("collection", coll))
				return
			}
			problems = append(problems, coll+": "+err.Error())
		}
	}

	ensure("groups", groupsSchema())
	ensure("links", linksSchema())
	ensure("gateway_entries", gatewayEntriesSchema())
	ensure("join_records", joinRecordsSchema())

	// Written by other services or free-form; no validator.
	ensure("subscriptions", nil)
	ensure("audit_events", nil)

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* ---------------------- collection helpers ---------------------- */

func collectionExists(ctx context.Context, db *mongo.Database, name string) (bool, error) {
	names, err := db.ListCollectionNames(ctx, bson.M{"name": name})
	if err != nil {
		return false, err
	}
	return len(names) > 0, nil
}

// ensureCollection idempotently makes sure name exists and reports whether
// this call created it.
func ensureCollection(ctx context.Context, db *mongo.Database, name string) (created bool, err error) {
	exists, listErr := collectionExists(ctx, db, name)
	if listErr == nil && exists {
		return false, nil
	}
	if err := db.CreateCollection(ctx, name); err != nil {
		// Lost a race with another instance, or listing failed above.
		if isNamespaceExistsErr(err) {
			return false, nil
		}
		zap.L().Warn("createCollection failed", zap.String("collection", name), zap.Error(err))
		return false, err
	}
	zap.L().Info("created collection", zap.String("collection", name))
	return true, nil
}

func setValidator(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	var out bson.M
	if err := db.RunCommand(ctx, cmd).Decode(&out); err != nil {
		return err
	}
	zap.L().Info("validator ensured", zap.String("collection", name))
	return nil
}

/* ------------------------- error helpers ------------------------- */

func commandErrorMatches(err error, code int32, phrases ...string) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == code {
		return true
	}
	s := strings.ToLower(err.Error())
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func isNamespaceExistsErr(err error) bool {
	return commandErrorMatches(err, 48, "already exists", "namespace exists")
}

func isNoSuchCommand(err error) bool {
	return commandErrorMatches(err, 59, "no such command")
}

func isNotImplemented(err error) bool {
	return commandErrorMatches(err, 115, "not implemented", "not supported")
}

/* ------------------------- JSON-Schema docs ---------------------- */

func groupsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"owner_id", "name", "name_ci", "max_members_default", "current_members", "active"},
			"properties": bson.M{
				"owner_id":            bson.M{"bsonType": "string", "minLength": 1},
				"name":                bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"},
				"name_ci":             bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"},
				"description":         bson.M{"bsonType": "string"},
				"max_members_default": bson.M{"bsonType": intType, "minimum": 1},
				"current_members":     bson.M{"bsonType": intType, "minimum": 0},
				"active":              bson.M{"bsonType": "bool"},
				"created_at":          bson.M{"bsonType": "date"},
				"updated_at":          bson.M{"bsonType": "date"},
			},
		},
	}
}

func linksSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"group_id", "owner_id", "target", "priority", "member_count", "max_members", "exhausted"},
			"properties": bson.M{
				"group_id":     bson.M{"bsonType": "objectId"},
				"owner_id":     bson.M{"bsonType": "string", "minLength": 1},
				"target":       bson.M{"bsonType": "string", "minLength": 1},
				"priority":     bson.M{"bsonType": intType},
				"member_count": bson.M{"bsonType": intType, "minimum": 0},
				"max_members":  bson.M{"bsonType": intType, "minimum": 1},
				"exhausted":    bson.M{"bsonType": "bool"},
				"created_at":   bson.M{"bsonType": "date"},
				"updated_at":   bson.M{"bsonType": "date"},
			},
		},
	}
}

func gatewayEntriesSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"owner_id", "slug", "active"},
			"properties": bson.M{
				"owner_id":   bson.M{"bsonType": "string", "minLength": 1},
				"slug":       bson.M{"bsonType": "string", "pattern": "^[a-z0-9][a-z0-9_-]*$", "maxLength": 64},
				"group_id":   bson.M{"bsonType": bson.A{"objectId", "null"}},
				"active":     bson.M{"bsonType": "bool"},
				"created_at": bson.M{"bsonType": "date"},
				"updated_at": bson.M{"bsonType": "date"},
			},
		},
	}
}

func joinRecordsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"entry_id", "group_id", "link_id", "timestamp"},
			"properties": bson.M{
				"entry_id":     bson.M{"bsonType": "objectId"},
				"group_id":     bson.M{"bsonType": "objectId"},
				"link_id":      bson.M{"bsonType": "objectId"},
				"timestamp":    bson.M{"bsonType": "date"},
				"visitor_hash": bson.M{"bsonType": "string"},
				"user_agent":   bson.M{"bsonType": "string"},
				"request_id":   bson.M{"bsonType": "string"},
			},
		},
	}
}
