package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/prescription"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/pkg/docstore"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/pkg/metrics"
)

type medicationDocument struct {
	ID           string `bson:"id"`
	Name         string `bson:"name"`
	Dosage       string `bson:"dosage"`
	Frequency    string `bson:"frequency"`
	Duration     string `bson:"duration"`
	Instructions string `bson:"instructions,omitempty"`
	Quantity     int    `bson:"quantity"`
	IsControlled bool   `bson:"isControlled"`
}

type prescriptionDocument struct {
	ID             string               `bson:"_id"`
	PatientID      string               `bson:"patientId"`
	DoctorID       string               `bson:"doctorId"`
	AppointmentID  *string              `bson:"appointmentId,omitempty"`
	Medications    []medicationDocument `bson:"medications"`
	IssueDate      time.Time            `bson:"issueDate"`
	ExpirationDate time.Time            `bson:"expirationDate"`
	Status         string               `bson:"status"`
	Notes          string               `bson:"notes,omitempty"`
	CreatedBy      string               `bson:"createdBy"`
	CreatedAt      time.Time            `bson:"createdAt"`
	UpdatedAt      time.Time            `bson:"updatedAt"`
}

func prescriptionFromDomain(p *prescription.Prescription) prescriptionDocument {
	meds := make([]medicationDocument, len(p.Medications))
	for i, m := range p.Medications {
		meds[i] = medicationDocument{
			ID:           idString(m.ID),
			Name:         m.Name,
			Dosage:       m.Dosage,
			Frequency:    m.Frequency,
			Duration:     m.Duration,
			Instructions: m.Instructions,
			Quantity:     m.Quantity,
			IsControlled: m.IsControlled,
		}
	}
	return prescriptionDocument{
		ID:             idString(p.ID),
		PatientID:      idString(p.PatientID),
		DoctorID:       idString(p.DoctorID),
		AppointmentID:  optIDString(p.AppointmentID),
		Medications:    meds,
		IssueDate:      p.IssueDate.UTC(),
		ExpirationDate: p.ExpirationDate.UTC(),
		Status:         string(p.Status),
		Notes:          p.Notes,
		CreatedBy:      idString(p.CreatedBy),
		CreatedAt:      p.CreatedAt.UTC(),
		UpdatedAt:      p.UpdatedAt.UTC(),
	}
}

func (d prescriptionDocument) toDomain() *prescription.Prescription {
	meds := make([]prescription.Medication, len(d.Medications))
	for i, m := range d.Medications {
		meds[i] = prescription.Medication{
			ID:           toUUID(m.ID),
			Name:         m.Name,
			Dosage:       m.Dosage,
			Frequency:    m.Frequency,
			Duration:     m.Duration,
			Instructions: m.Instructions,
			Quantity:     m.Quantity,
			IsControlled: m.IsControlled,
		}
	}
	return &prescription.Prescription{
		ID:             toUUID(d.ID),
		PatientID:      toUUID(d.PatientID),
		DoctorID:       toUUID(d.DoctorID),
		AppointmentID:  optUUID(d.AppointmentID),
		Medications:    meds,
		IssueDate:      d.IssueDate,
		ExpirationDate: d.ExpirationDate,
		Status:         prescription.Status(d.Status),
		Notes:          d.Notes,
		CreatedBy:      toUUID(d.CreatedBy),
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

type PrescriptionRepository struct {
	c collection
}

func NewPrescriptionRepository(db *mongo.Database, m *metrics.Collector) *PrescriptionRepository {
	return &PrescriptionRepository{c: newCollection(db, docstore.CollectionPrescriptions, m)}
}

func (r *PrescriptionRepository) Create(ctx context.Context, p *prescription.Prescription) error {
	defer r.c.observe("insert")()

	now := time.Now().UTC()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt, p.UpdatedAt = now, now

	if _, err := r.c.coll.InsertOne(ctx, prescriptionFromDomain(p)); err != nil {
		return fmt.Errorf("inserting prescription: %w", err)
	}
	return nil
}

func (r *PrescriptionRepository) GetByID(ctx context.Context, id uuid.UUID) (*prescription.Prescription, error) {
	defer r.c.observe("find_one")()

	var doc prescriptionDocument
	err := r.c.coll.FindOne(ctx, bson.M{"_id": idString(id)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, prescription.ErrPrescriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding prescription: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *PrescriptionRepository) Update(ctx context.Context, p *prescription.Prescription) error {
	defer r.c.observe("replace")()

	res, err := r.c.coll.ReplaceOne(ctx, bson.M{"_id": idString(p.ID)}, prescriptionFromDomain(p))
	if err != nil {
		return fmt.Errorf("updating prescription: %w", err)
	}
	if res.MatchedCount == 0 {
		return prescription.ErrPrescriptionNotFound
	}
	return nil
}

func (r *PrescriptionRepository) List(ctx context.Context, q *prescription.ListPrescriptionsQuery) (*prescription.PagedPrescriptions, error) {
	sort := bson.D{{Key: "issueDate", Value: -1}}
	docs, total, err := findPage[prescriptionDocument](ctx, r.c, prescriptionFilter(q), sort, q.Page, q.PageSize)
	if err != nil {
		return nil, fmt.Errorf("listing prescriptions: %w", err)
	}

	out := make([]*prescription.Prescription, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return &prescription.PagedPrescriptions{
		Prescriptions: out,
		TotalCount:    total,
		Page:          q.Page,
		PageSize:      q.PageSize,
		TotalPages:    totalPages(total, q.PageSize),
	}, nil
}

// prescriptionFilter with ValidAt keeps only ACTIVE prescriptions not yet
// expired at that instant.
func prescriptionFilter(q *prescription.ListPrescriptionsQuery) bson.M {
	filter := bson.M{}
	if q.PatientID != nil {
		filter["patientId"] = idString(*q.PatientID)
	}
	if q.DoctorID != nil {
		filter["doctorId"] = idString(*q.DoctorID)
	}
	if q.Status != nil {
		filter["status"] = string(*q.Status)
	}
	if q.ValidAt != nil {
		filter["status"] = string(prescription.StatusActive)
		filter["expirationDate"] = bson.M{"$gte": q.ValidAt.UTC()}
	}
	return filter
}
