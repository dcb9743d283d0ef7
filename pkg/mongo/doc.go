// Package mongo provides MongoDB connection management for the artkit
// profile store.
//
// Configuration is environment-driven, connection attempts retry a fixed
// number of times with a fixed interval, and a health check function is
// available for readiness probes.
//
//	cfg := mongo.Config{ConnectionURL: "mongodb://localhost:27017"}
//	db, err := mongo.NewWithDatabase(ctx, cfg, "artmarket")
package mongo
