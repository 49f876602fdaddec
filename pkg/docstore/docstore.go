// Package docstore connects to the MongoDB database that stores the clinical
// aggregates and owns its collection names and indexes.
package docstore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/config"
)

const (
	CollectionPatients       = "patients"
	CollectionAppointments   = "appointments"
	CollectionTreatments     = "treatments"
	CollectionPrescriptions  = "prescriptions"
	CollectionMedicalRecords = "medical_records"
)

func Connect(ctx context.Context, cfg config.MongoConfig) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetServerSelectionTimeout(cfg.ConnectTimeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	return client, nil
}

type index struct {
	collection string
	model      mongo.IndexModel
}

func indexes() []index {
	return []index{
		{CollectionPatients, mongo.IndexModel{
			Keys:    bson.D{{Key: "medicalIdentifier", Value: 1}},
			Options: options.Index().SetName("uniq_medical_identifier").SetUnique(true),
		}},
		{CollectionPatients, mongo.IndexModel{
			Keys:    bson.D{{Key: "lastName", Value: 1}, {Key: "firstName", Value: 1}},
			Options: options.Index().SetName("patient_name"),
		}},
		// A second occupying booking for the same doctor and start time is
		// rejected here even if two requests pass the availability check together.
		{CollectionAppointments, mongo.IndexModel{
			Keys: bson.D{{Key: "doctorId", Value: 1}, {Key: "scheduledAt", Value: 1}},
			Options: options.Index().
				SetName("uniq_doctor_occupied_slot").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"occupying": true}),
		}},
		{CollectionAppointments, mongo.IndexModel{
			Keys:    bson.D{{Key: "doctorId", Value: 1}, {Key: "occupying", Value: 1}},
			Options: options.Index().SetName("doctor_occupancy"),
		}},
		{CollectionAppointments, mongo.IndexModel{
			Keys:    bson.D{{Key: "patientId", Value: 1}, {Key: "scheduledAt", Value: -1}},
			Options: options.Index().SetName("patient_timeline"),
		}},
		{CollectionTreatments, mongo.IndexModel{
			Keys:    bson.D{{Key: "patientId", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("patient_status"),
		}},
		{CollectionPrescriptions, mongo.IndexModel{
			Keys:    bson.D{{Key: "patientId", Value: 1}, {Key: "status", Value: 1}, {Key: "expirationDate", Value: 1}},
			Options: options.Index().SetName("patient_status_expiry"),
		}},
		{CollectionMedicalRecords, mongo.IndexModel{
			Keys:    bson.D{{Key: "patientId", Value: 1}},
			Options: options.Index().SetName("uniq_patient_record").SetUnique(true),
		}},
	}
}

// EnsureIndexes is idempotent; MongoDB ignores an index that already exists
// with the same name and definition.
func EnsureIndexes(ctx context.Context, db *mongo.Database, log *zap.Logger) error {
	start := time.Now()
	for _, idx := range indexes() {
		name, err := db.Collection(idx.collection).Indexes().CreateOne(ctx, idx.model)
		if err != nil {
			return fmt.Errorf("creating index on %s: %w", idx.collection, err)
		}
		log.Debug("index ensured", zap.String("collection", idx.collection), zap.String("index", name))
	}
	log.Info("mongodb indexes ensured", zap.Duration("duration", time.Since(start)))
	return nil
}
