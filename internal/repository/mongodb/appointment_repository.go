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

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/pkg/docstore"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/pkg/metrics"
)

type appointmentDocument struct {
	ID           string    `bson:"_id"`
	PatientID    string    `bson:"patientId"`
	DoctorID     string    `bson:"doctorId"`
	ScheduledAt  time.Time `bson:"scheduledAt"`
	DurationMins int       `bson:"durationMins"`
	Type         string    `bson:"type"`
	Status       string    `bson:"status"`
	// Occupying mirrors Status.IsOccupying so the unique slot index can use
	// an equality partial filter.
	Occupying bool `bson:"occupying"`

	Reason string `bson:"reason"`
	Notes  string `bson:"notes,omitempty"`
	Room   string `bson:"room,omitempty"`

	CancelledAt        *time.Time `bson:"cancelledAt,omitempty"`
	CancellationReason string     `bson:"cancellationReason,omitempty"`
	CancelledBy        *string    `bson:"cancelledBy,omitempty"`
	CompletedAt        *time.Time `bson:"completedAt,omitempty"`

	CreatedBy string    `bson:"createdBy"`
	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

func appointmentFromDomain(a *appointment.Appointment) appointmentDocument {
	return appointmentDocument{
		ID:                 idString(a.ID),
		PatientID:          idString(a.PatientID),
		DoctorID:           idString(a.DoctorID),
		ScheduledAt:        a.ScheduledAt.UTC(),
		DurationMins:       a.DurationMins,
		Type:               string(a.Type),
		Status:             string(a.Status),
		Occupying:          a.Status.IsOccupying(),
		Reason:             a.Reason,
		Notes:              a.Notes,
		Room:               a.Room,
		CancelledAt:        utcPtr(a.CancelledAt),
		CancellationReason: a.CancellationReason,
		CancelledBy:        optIDString(a.CancelledBy),
		CompletedAt:        utcPtr(a.CompletedAt),
		CreatedBy:          idString(a.CreatedBy),
		CreatedAt:          a.CreatedAt.UTC(),
		UpdatedAt:          a.UpdatedAt.UTC(),
	}
}

func (d appointmentDocument) toDomain() *appointment.Appointment {
	return &appointment.Appointment{
		ID:                 toUUID(d.ID),
		PatientID:          toUUID(d.PatientID),
		DoctorID:           toUUID(d.DoctorID),
		ScheduledAt:        d.ScheduledAt,
		DurationMins:       d.DurationMins,
		Type:               appointment.AppointmentType(d.Type),
		Status:             appointment.Status(d.Status),
		Reason:             d.Reason,
		Notes:              d.Notes,
		Room:               d.Room,
		CancelledAt:        d.CancelledAt,
		CancellationReason: d.CancellationReason,
		CancelledBy:        optUUID(d.CancelledBy),
		CompletedAt:        d.CompletedAt,
		CreatedBy:          toUUID(d.CreatedBy),
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
}

type AppointmentRepository struct {
	c collection
}

func NewAppointmentRepository(db *mongo.Database, m *metrics.Collector) *AppointmentRepository {
	return &AppointmentRepository{c: newCollection(db, docstore.CollectionAppointments, m)}
}

func (r *AppointmentRepository) Create(ctx context.Context, a *appointment.Appointment) error {
	defer r.c.observe("insert")()

	now := time.Now().UTC()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt, a.UpdatedAt = now, now

	if _, err := r.c.coll.InsertOne(ctx, appointmentFromDomain(a)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return appointment.ErrAppointmentConflict
		}
		return fmt.Errorf("inserting appointment: %w", err)
	}
	return nil
}

func (r *AppointmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	defer r.c.observe("find_one")()

	var doc appointmentDocument
	err := r.c.coll.FindOne(ctx, bson.M{"_id": idString(id)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, appointment.ErrAppointmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding appointment: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *AppointmentRepository) Update(ctx context.Context, a *appointment.Appointment) error {
	defer r.c.observe("replace")()

	res, err := r.c.coll.ReplaceOne(ctx, bson.M{"_id": idString(a.ID)}, appointmentFromDomain(a))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return appointment.ErrAppointmentConflict
		}
		return fmt.Errorf("updating appointment: %w", err)
	}
	if res.MatchedCount == 0 {
		return appointment.ErrAppointmentNotFound
	}
	return nil
}

func (r *AppointmentRepository) List(ctx context.Context, q *appointment.ListAppointmentsQuery) (*appointment.PagedAppointments, error) {
	sort := bson.D{{Key: "scheduledAt", Value: 1}}
	docs, total, err := findPage[appointmentDocument](ctx, r.c, appointmentFilter(q), sort, q.Page, q.PageSize)
	if err != nil {
		return nil, fmt.Errorf("listing appointments: %w", err)
	}

	out := make([]*appointment.Appointment, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return &appointment.PagedAppointments{
		Appointments: out,
		TotalCount:   total,
		Page:         q.Page,
		PageSize:     q.PageSize,
		TotalPages:   totalPages(total, q.PageSize),
	}, nil
}

// FindOccupyingAppointments reads the doctor's blocking bookings straight from
// the collection on every call.
func (r *AppointmentRepository) FindOccupyingAppointments(ctx context.Context, doctorID uuid.UUID) ([]appointment.Booking, error) {
	defer r.c.observe("find_occupying")()

	opts := options.Find().
		SetSort(bson.D{{Key: "scheduledAt", Value: 1}}).
		SetProjection(bson.M{"_id": 1, "scheduledAt": 1, "durationMins": 1})

	cursor, err := r.c.coll.Find(ctx, occupyingFilter(doctorID), opts)
	if err != nil {
		return nil, fmt.Errorf("finding occupying appointments: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []appointmentDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decoding occupying appointments: %w", err)
	}

	bookings := make([]appointment.Booking, 0, len(docs))
	for _, d := range docs {
		bookings = append(bookings, appointment.Booking{
			ID:           toUUID(d.ID),
			ScheduledAt:  d.ScheduledAt,
			DurationMins: d.DurationMins,
		})
	}
	return bookings, nil
}

func occupyingFilter(doctorID uuid.UUID) bson.M {
	statuses := appointment.OccupyingStatuses()
	in := make([]string, len(statuses))
	for i, s := range statuses {
		in[i] = string(s)
	}
	return bson.M{
		"doctorId": idString(doctorID),
		"status":   bson.M{"$in": in},
	}
}

func appointmentFilter(q *appointment.ListAppointmentsQuery) bson.M {
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
	if q.Type != nil {
		filter["type"] = string(*q.Type)
	}
	if r := timeRange(q.DateFrom, q.DateTo); r != nil {
		filter["scheduledAt"] = r
	}
	return filter
}
