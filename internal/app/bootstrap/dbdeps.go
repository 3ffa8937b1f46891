// internal/app/bootstrap/dbdeps.go
package bootstrap

import "go.mongodb.org/mongo-driver/mongo"

// DBDeps carries the Mongo handles behind the audit trail and the
// health check.
type DBDeps struct {
	PayDeskMongoClient   *mongo.Client
	PayDeskMongoDatabase *mongo.Database
}
