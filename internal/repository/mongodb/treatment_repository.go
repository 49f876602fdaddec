package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/treatment"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/pkg/docstore"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/pkg/metrics"
)

type treatmentDocument struct {
	ID           string     `bson:"_id"`
	PatientID    string     `bson:"patientId"`
	DoctorID     string     `bson:"doctorId"`
	Name         string     `bson:"name"`
	Description  string     `bson:"description"`
	Type         string     `bson:"type"`
	Status       string     `bson:"status"`
	StartDate    time.Time  `bson:"startDate"`
	EndDate      *time.Time `bson:"endDate,omitempty"`
	Instructions string     `bson:"instructions"`
	Notes        string     `bson:"notes,omitempty"`
	CreatedBy    string     `bson:"createdBy"`
	CreatedAt    time.Time  `bson:"createdAt"`
	UpdatedAt    time.Time  `bson:"updatedAt"`
}

func treatmentFromDomain(t *treatment.Treatment) treatmentDocument {
	return treatmentDocument{
		ID:           idString(t.ID),
		PatientID:    idString(t.PatientID),
		DoctorID:     idString(t.DoctorID),
		Name:         t.Name,
		Description:  t.Description,
		Type:         string(t.Type),
		Status:       string(t.Status),
		StartDate:    t.StartDate.UTC(),
		EndDate:      utcPtr(t.EndDate),
		Instructions: t.Instructions,
		Notes:        t.Notes,
		CreatedBy:    idString(t.CreatedBy),
		CreatedAt:    t.CreatedAt.UTC(),
		UpdatedAt:    t.UpdatedAt.UTC(),
	}
}

func (d treatmentDocument) toDomain() *treatment.Treatment {
	return &treatment.Treatment{
		ID:           toUUID(d.ID),
		PatientID:    toUUID(d.PatientID),
		DoctorID:     toUUID(d.DoctorID),
		Name:         d.Name,
		Description:  d.Description,
		Type:         treatment.Type(d.Type),
		Status:       treatment.Status(d.Status),
		StartDate:    d.StartDate,
		EndDate:      d.EndDate,
		Instructions: d.Instructions,
		Notes:        d.Notes,
		CreatedBy:    toUUID(d.CreatedBy),
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

type TreatmentRepository struct {
	c collection
}

func NewTreatmentRepository(db *mongo.Database, m *metrics.Collector) *TreatmentRepository {
	return &TreatmentRepository{c: newCollection(db, docstore.CollectionTreatments, m)}
}

func (r *TreatmentRepository) Create(ctx context.Context, t *treatment.Treatment) error {
	defer r.c.observe("insert")()

	now := time.Now().UTC()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.CreatedAt, t.UpdatedAt = now, now

	if _, err := r.c.coll.InsertOne(ctx, treatmentFromDomain(t)); err != nil {
		return fmt.Errorf("inserting treatment: %w", err)
	}
	return nil
}

func (r *TreatmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*treatment.Treatment, error) {
	defer r.c.observe("find_one")()

	var doc treatmentDocument
	err := r.c.coll.FindOne(ctx, bson.M{"_id": idString(id)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, treatment.ErrTreatmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding treatment: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *TreatmentRepository) Update(ctx context.Context, t *treatment.Treatment) error {
	defer r.c.observe("replace")()

	res, err := r.c.coll.ReplaceOne(ctx, bson.M{"_id": idString(t.ID)}, treatmentFromDomain(t))
	if err != nil {
		return fmt.Errorf("updating treatment: %w", err)
	}
	if res.MatchedCount == 0 {
		return treatment.ErrTreatmentNotFound
	}
	return nil
}

func (r *TreatmentRepository) List(ctx context.Context, q *treatment.ListTreatmentsQuery) (*treatment.PagedTreatments, error) {
	sort := bson.D{{Key: "startDate", Value: -1}}
	docs, total, err := findPage[treatmentDocument](ctx, r.c, treatmentFilter(q), sort, q.Page, q.PageSize)
	if err != nil {
		return nil, fmt.Errorf("listing treatments: %w", err)
	}

	out := make([]*treatment.Treatment, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return &treatment.PagedTreatments{
		Treatments: out,
		TotalCount: total,
		Page:       q.Page,
		PageSize:   q.PageSize,
		TotalPages: totalPages(total, q.PageSize),
	}, nil
}

func (r *TreatmentRepository) ListActiveByPatient(ctx context.Context, patientID uuid.UUID) ([]*treatment.Treatment, error) {
	defer r.c.observe("find_active")()

	filter := bson.M{
		"patientId": idString(patientID),
		"status":    string(treatment.StatusActive),
	}
	cursor, err := r.c.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "startDate", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("finding active treatments: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []treatmentDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decoding active treatments: %w", err)
	}

	out := make([]*treatment.Treatment, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func treatmentFilter(q *treatment.ListTreatmentsQuery) bson.M {
	filter := bson.M{}
	if q.PatientID != nil {
		filter["patientId"] = idString(*q.PatientID)
	}
	if q.DoctorID != nil {
		filter["doctorId"] = idString(*q.DoctorID)
	}
	switch {
	case q.Status != nil:
		filter["status"] = string(*q.Status)
	case q.Active != nil && *q.Active:
		filter["status"] = string(treatment.StatusActive)
	case q.Active != nil:
		filter["status"] = bson.M{"$ne": string(treatment.StatusActive)}
	}
	if q.Type != nil {
		filter["type"] = string(*q.Type)
	}
	if r := timeRange(q.StartDateFrom, q.StartDateTo); r != nil {
		filter["startDate"] = r
	}
	return filter
}
