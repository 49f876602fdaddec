package mongodb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/pkg/docstore"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/pkg/metrics"
)

type contactDocument struct {
	Email            string                    `bson:"email"`
	Phone            string                    `bson:"phone"`
	Address          string                    `bson:"address"`
	EmergencyContact *patient.EmergencyContact `bson:"emergencyContact,omitempty"`
}

type patientDocument struct {
	ID                string          `bson:"_id"`
	FirstName         string          `bson:"firstName"`
	LastName          string          `bson:"lastName"`
	DateOfBirth       time.Time       `bson:"dateOfBirth"`
	Gender            string          `bson:"gender"`
	BloodType         string          `bson:"bloodType,omitempty"`
	MedicalIdentifier string          `bson:"medicalIdentifier"`
	ContactInfo       contactDocument `bson:"contactInfo"`
	Allergies         []string        `bson:"allergies"`
	Status            string          `bson:"status"`
	CreatedBy         string          `bson:"createdBy"`
	CreatedAt         time.Time       `bson:"createdAt"`
	UpdatedAt         time.Time       `bson:"updatedAt"`
	DeletedAt         *time.Time      `bson:"deletedAt,omitempty"`
}

func patientFromDomain(p *patient.Patient) patientDocument {
	return patientDocument{
		ID:                idString(p.ID),
		FirstName:         p.FirstName,
		LastName:          p.LastName,
		DateOfBirth:       p.DateOfBirth.UTC(),
		Gender:            string(p.Gender),
		BloodType:         string(p.BloodType),
		MedicalIdentifier: p.MedicalIdentifier,
		ContactInfo: contactDocument{
			Email:            p.ContactInfo.Email,
			Phone:            p.ContactInfo.Phone,
			Address:          p.ContactInfo.Address,
			EmergencyContact: p.ContactInfo.EmergencyContact,
		},
		Allergies: p.Allergies,
		Status:    string(p.Status),
		CreatedBy: idString(p.CreatedBy),
		CreatedAt: p.CreatedAt.UTC(),
		UpdatedAt: p.UpdatedAt.UTC(),
		DeletedAt: utcPtr(p.DeletedAt),
	}
}

func (d patientDocument) toDomain() *patient.Patient {
	return &patient.Patient{
		ID:                toUUID(d.ID),
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
		DeletedAt:         d.DeletedAt,
		FirstName:         d.FirstName,
		LastName:          d.LastName,
		DateOfBirth:       d.DateOfBirth,
		Gender:            patient.Gender(d.Gender),
		BloodType:         patient.BloodType(d.BloodType),
		MedicalIdentifier: d.MedicalIdentifier,
		ContactInfo: patient.ContactInfo{
			Email:            d.ContactInfo.Email,
			Phone:            d.ContactInfo.Phone,
			Address:          d.ContactInfo.Address,
			EmergencyContact: d.ContactInfo.EmergencyContact,
		},
		Allergies: d.Allergies,
		Status:    patient.Status(d.Status),
		CreatedBy: toUUID(d.CreatedBy),
	}
}

type PatientRepository struct {
	c collection
}

func NewPatientRepository(db *mongo.Database, m *metrics.Collector) *PatientRepository {
	return &PatientRepository{c: newCollection(db, docstore.CollectionPatients, m)}
}

func (r *PatientRepository) Create(ctx context.Context, p *patient.Patient) error {
	defer r.c.observe("insert")()

	now := time.Now().UTC()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt, p.UpdatedAt = now, now

	if _, err := r.c.coll.InsertOne(ctx, patientFromDomain(p)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return patient.ErrPatientAlreadyExists
		}
		return fmt.Errorf("inserting patient: %w", err)
	}
	return nil
}

func (r *PatientRepository) GetByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error) {
	defer r.c.observe("find_one")()

	var doc patientDocument
	err := r.c.coll.FindOne(ctx, bson.M{"_id": idString(id)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, patient.ErrPatientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding patient: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *PatientRepository) Update(ctx context.Context, p *patient.Patient) error {
	defer r.c.observe("replace")()

	p.UpdatedAt = time.Now().UTC()
	res, err := r.c.coll.ReplaceOne(ctx, bson.M{"_id": idString(p.ID)}, patientFromDomain(p))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return patient.ErrPatientAlreadyExists
		}
		return fmt.Errorf("updating patient: %w", err)
	}
	if res.MatchedCount == 0 {
		return patient.ErrPatientNotFound
	}
	return nil
}

func (r *PatientRepository) List(ctx context.Context, q *patient.ListPatientsQuery) (*patient.PagedPatients, error) {
	sort := bson.D{{Key: "lastName", Value: 1}, {Key: "firstName", Value: 1}}
	docs, total, err := findPage[patientDocument](ctx, r.c, patientFilter(q), sort, q.Page, q.PageSize)
	if err != nil {
		return nil, fmt.Errorf("listing patients: %w", err)
	}

	out := make([]*patient.Patient, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return &patient.PagedPatients{
		Patients:   out,
		TotalCount: total,
		Page:       q.Page,
		PageSize:   q.PageSize,
		TotalPages: totalPages(total, q.PageSize),
	}, nil
}

func (r *PatientRepository) ExistsByMedicalIdentifier(ctx context.Context, medicalID string, excludeID *uuid.UUID) (bool, error) {
	defer r.c.observe("count")()

	filter := bson.M{"medicalIdentifier": strings.TrimSpace(medicalID)}
	if excludeID != nil {
		filter["_id"] = bson.M{"$ne": idString(*excludeID)}
	}
	n, err := r.c.coll.CountDocuments(ctx, filter)
	if err != nil {
		return false, fmt.Errorf("checking medical identifier: %w", err)
	}
	return n > 0, nil
}

func patientFilter(q *patient.ListPatientsQuery) bson.M {
	filter := bson.M{}
	if s := strings.TrimSpace(q.FirstName); s != "" {
		filter["firstName"] = containsFold(s)
	}
	if s := strings.TrimSpace(q.LastName); s != "" {
		filter["lastName"] = containsFold(s)
	}
	if s := strings.TrimSpace(q.MedicalIdentifier); s != "" {
		filter["medicalIdentifier"] = s
	}
	if s := strings.TrimSpace(q.Email); s != "" {
		filter["contactInfo.email"] = strings.ToLower(s)
	}
	if q.Active != nil {
		if *q.Active {
			filter["status"] = string(patient.StatusActive)
		} else {
			filter["status"] = string(patient.StatusInactive)
		}
	}
	return filter
}
