package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	mr "github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/medical_record"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/pkg/docstore"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/pkg/metrics"
)

type attachmentDocument struct {
	ID          string    `bson:"id"`
	FileName    string    `bson:"fileName"`
	ContentType string    `bson:"contentType"`
	URL         string    `bson:"url"`
	SizeBytes   int64     `bson:"sizeBytes"`
	UploadedAt  time.Time `bson:"uploadedAt"`
}

type entryDocument struct {
	ID              string               `bson:"id"`
	Type            string               `bson:"type"`
	DoctorID        string               `bson:"doctorId"`
	Date            time.Time            `bson:"date"`
	Description     string               `bson:"description"`
	Diagnosis       string               `bson:"diagnosis,omitempty"`
	PrescriptionIDs []string             `bson:"prescriptionIds,omitempty"`
	TreatmentIDs    []string             `bson:"treatmentIds,omitempty"`
	Attachments     []attachmentDocument `bson:"attachments,omitempty"`
	VitalSigns      *mr.VitalSigns       `bson:"vitalSigns,omitempty"`
	CreatedBy       string               `bson:"createdBy"`
}

type medicalRecordDocument struct {
	ID        string          `bson:"_id"`
	PatientID string          `bson:"patientId"`
	Entries   []entryDocument `bson:"entries"`
	CreatedAt time.Time       `bson:"createdAt"`
	UpdatedAt time.Time       `bson:"updatedAt"`
}

func entryFromDomain(e mr.Entry) entryDocument {
	var atts []attachmentDocument
	for _, a := range e.Attachments {
		atts = append(atts, attachmentDocument{
			ID:          idString(a.ID),
			FileName:    a.FileName,
			ContentType: a.ContentType,
			URL:         a.URL,
			SizeBytes:   a.SizeBytes,
			UploadedAt:  a.UploadedAt.UTC(),
		})
	}
	return entryDocument{
		ID:              idString(e.ID),
		Type:            string(e.Type),
		DoctorID:        idString(e.DoctorID),
		Date:            e.Date.UTC(),
		Description:     e.Description,
		Diagnosis:       e.Diagnosis,
		PrescriptionIDs: idStrings(e.PrescriptionIDs),
		TreatmentIDs:    idStrings(e.TreatmentIDs),
		Attachments:     atts,
		VitalSigns:      e.VitalSigns,
		CreatedBy:       idString(e.CreatedBy),
	}
}

func (d entryDocument) toDomain() mr.Entry {
	var atts []mr.Attachment
	for _, a := range d.Attachments {
		atts = append(atts, mr.Attachment{
			ID:          toUUID(a.ID),
			FileName:    a.FileName,
			ContentType: a.ContentType,
			URL:         a.URL,
			SizeBytes:   a.SizeBytes,
			UploadedAt:  a.UploadedAt,
		})
	}
	return mr.Entry{
		ID:              toUUID(d.ID),
		Type:            mr.EntryType(d.Type),
		DoctorID:        toUUID(d.DoctorID),
		Date:            d.Date,
		Description:     d.Description,
		Diagnosis:       d.Diagnosis,
		PrescriptionIDs: uuids(d.PrescriptionIDs),
		TreatmentIDs:    uuids(d.TreatmentIDs),
		Attachments:     atts,
		VitalSigns:      d.VitalSigns,
		CreatedBy:       toUUID(d.CreatedBy),
	}
}

func (d medicalRecordDocument) toDomain() *mr.MedicalRecord {
	entries := make([]mr.Entry, 0, len(d.Entries))
	for _, e := range d.Entries {
		entries = append(entries, e.toDomain())
	}
	return &mr.MedicalRecord{
		ID:        toUUID(d.ID),
		PatientID: toUUID(d.PatientID),
		Entries:   entries,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

type MedicalRecordRepository struct {
	c collection
}

func NewMedicalRecordRepository(db *mongo.Database, m *metrics.Collector) *MedicalRecordRepository {
	return &MedicalRecordRepository{c: newCollection(db, docstore.CollectionMedicalRecords, m)}
}

func (r *MedicalRecordRepository) Create(ctx context.Context, rec *mr.MedicalRecord) error {
	defer r.c.observe("insert")()

	now := time.Now().UTC()
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	rec.CreatedAt, rec.UpdatedAt = now, now

	entries := make([]entryDocument, 0, len(rec.Entries))
	for _, e := range rec.Entries {
		entries = append(entries, entryFromDomain(e))
	}
	doc := medicalRecordDocument{
		ID:        idString(rec.ID),
		PatientID: idString(rec.PatientID),
		Entries:   entries,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := r.c.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return mr.ErrRecordExists
		}
		return fmt.Errorf("inserting medical record: %w", err)
	}
	return nil
}

func (r *MedicalRecordRepository) GetByID(ctx context.Context, id uuid.UUID) (*mr.MedicalRecord, error) {
	return r.findOne(ctx, bson.M{"_id": idString(id)})
}

func (r *MedicalRecordRepository) GetByPatientID(ctx context.Context, patientID uuid.UUID) (*mr.MedicalRecord, error) {
	return r.findOne(ctx, bson.M{"patientId": idString(patientID)})
}

func (r *MedicalRecordRepository) findOne(ctx context.Context, filter bson.M) (*mr.MedicalRecord, error) {
	defer r.c.observe("find_one")()

	var doc medicalRecordDocument
	err := r.c.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, mr.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding medical record: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *MedicalRecordRepository) AppendEntry(ctx context.Context, recordID uuid.UUID, e mr.Entry) error {
	defer r.c.observe("push_entry")()

	update := bson.M{
		"$push": bson.M{"entries": entryFromDomain(e)},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	}
	res, err := r.c.coll.UpdateOne(ctx, bson.M{"_id": idString(recordID)}, update)
	if err != nil {
		return fmt.Errorf("appending medical record entry: %w", err)
	}
	if res.MatchedCount == 0 {
		return mr.ErrRecordNotFound
	}
	return nil
}
