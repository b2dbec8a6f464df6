package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"civic-reporting-system/services/report-service/models"
)

const reportsCollection = "reports"

type MongoStore struct {
	coll *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{coll: db.Collection(reportsCollection)}
}

func (s *MongoStore) Create(ctx context.Context, r *models.Report) (string, error) {
	res, err := s.coll.InsertOne(ctx, r)
	if err != nil {
		return "", fmt.Errorf("insert report: %w", err)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("insert report: unexpected id type %T", res.InsertedID)
	}
	return oid.Hex(), nil
}

func (s *MongoStore) GetByID(ctx context.Context, id string) (*models.Report, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	var doc reportDocument
	err = s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find report %s: %w", id, err)
	}

	r := doc.toModel()
	return &r, nil
}

func (s *MongoStore) UpdateByID(ctx context.Context, id string, u Update) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}

	filter := guardFilter(oid, u)
	update := buildUpdate(u)
	if len(update) == 0 {
		return nil
	}

	res, err := s.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("update report %s: %w", id, err)
	}
	if res.MatchedCount > 0 {
		return nil
	}
	if !u.guarded() {
		return ErrNotFound
	}

	n, err := s.coll.CountDocuments(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("recheck report %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrConflict
}

// Scan returns matching reports in natural order.
func (s *MongoStore) Scan(ctx context.Context, f Filter) ([]models.Report, error) {
	cursor, err := s.coll.Find(ctx, buildFilter(f))
	if err != nil {
		return nil, fmt.Errorf("scan reports: %w", err)
	}
	defer cursor.Close(ctx)

	reports := make([]models.Report, 0)
	for cursor.Next(ctx) {
		var doc reportDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode report: %w", err)
		}
		reports = append(reports, doc.toModel())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("scan reports: %w", err)
	}
	return reports, nil
}

// terminalStatus matches every stored spelling that reads as completed.
var terminalStatus = primitive.Regex{Pattern: `^\s*(completed|complete|done|resolved)\s*$`, Options: "i"}

func guardFilter(oid primitive.ObjectID, u Update) bson.M {
	filter := bson.M{"_id": oid}
	if u.ExpectLastActionDate != nil {
		filter["last_action_date"] = *u.ExpectLastActionDate
		if raw, ok := u.ExpectLastActionRaw.(bson.RawValue); ok {
			if raw.Type == bsontype.Type(0) {
				filter["last_action_date"] = bson.M{"$exists": false}
			} else {
				filter["last_action_date"] = raw
			}
		}
	}
	if u.ExpectOpen {
		filter["status"] = bson.M{"$not": terminalStatus}
	}
	return filter
}

func buildFilter(f Filter) bson.M {
	filter := bson.M{}
	if f.Category != "" {
		filter["category"] = f.Category
	}
	switch len(f.Statuses) {
	case 0:
	case 1:
		filter["status"] = f.Statuses[0]
	default:
		filter["status"] = bson.M{"$in": f.Statuses}
	}
	if f.EscalationLevel != 0 {
		filter["escalation_level"] = f.EscalationLevel
	}
	if f.Department != "" {
		filter["department"] = f.Department
	}
	if f.UserID != "" {
		filter["user_id"] = f.UserID
	}
	return filter
}

func buildUpdate(u Update) bson.M {
	set := bson.M{}
	if u.Title != nil {
		set["title"] = *u.Title
	}
	if u.Description != nil {
		set["description"] = *u.Description
	}
	if u.Priority != nil {
		set["priority"] = *u.Priority
	}
	if u.Status != nil {
		set["status"] = *u.Status
	}
	if u.Notes != nil {
		set["notes"] = *u.Notes
	}
	if u.EscalationLevel != nil {
		set["escalation_level"] = *u.EscalationLevel
	}
	if u.IsCoolOffPeriod != nil {
		set["is_cool_off_period"] = *u.IsCoolOffPeriod
	}
	if u.LastActionDate != nil {
		set["last_action_date"] = *u.LastActionDate
	}
	if u.LastReminderAt != nil {
		set["last_reminder_at"] = *u.LastReminderAt
	}
	if !u.UpdatedAt.IsZero() {
		set["updated_at"] = u.UpdatedAt
	}

	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}

	inc := bson.M{}
	if u.IncUpvotes != 0 {
		inc["upvotes"] = u.IncUpvotes
	}
	if u.IncReminderCount != 0 {
		inc["reminder_count"] = u.IncReminderCount
	}
	if len(inc) > 0 {
		update["$inc"] = inc
	}

	if u.AddCoReporter != "" {
		update["$addToSet"] = bson.M{"co_reporters": u.AddCoReporter}
	}
	if len(u.AppendHistory) > 0 {
		update["$push"] = bson.M{"escalation_history": bson.M{"$each": u.AppendHistory}}
	}
	return update
}

// reportDocument is the stored shape. Timestamps are read raw because older
// documents carry them as BSON timestamps, strings or epoch millis.
type reportDocument struct {
	ID            primitive.ObjectID `bson:"_id"`
	Title         string             `bson:"title"`
	Description   string             `bson:"description"`
	Category      string             `bson:"category"`
	Department    string             `bson:"department"`
	Priority      string             `bson:"priority"`
	Status        string             `bson:"status"`
	Notes         string             `bson:"notes"`
	LocationText  string             `bson:"location_text"`
	Landmark      string             `bson:"landmark"`
	Images        []string           `bson:"images"`
	UserID        string             `bson:"user_id"`
	ReporterName  string             `bson:"reporter_name"`
	ReporterEmail string             `bson:"reporter_email"`

	Upvotes     int      `bson:"upvotes"`
	CoReporters []string `bson:"co_reporters"`

	EscalationLevel   int               `bson:"escalation_level"`
	IsCoolOffPeriod   bool              `bson:"is_cool_off_period"`
	LastActionDate    bson.RawValue     `bson:"last_action_date"`
	LastReminderAt    bson.RawValue     `bson:"last_reminder_at"`
	ReminderCount     int               `bson:"reminder_count"`
	EscalationHistory []historyDocument `bson:"escalation_history"`

	CreatedAt bson.RawValue `bson:"created_at"`
	UpdatedAt bson.RawValue `bson:"updated_at"`
}

type historyDocument struct {
	Date bson.RawValue `bson:"date"`
	Note string        `bson:"note"`
}

func (d reportDocument) toModel() models.Report {
	status, ok := models.ParseStatus(d.Status)
	if !ok {
		status = models.Status(d.Status)
	}
	priority, ok := models.ParsePriority(d.Priority)
	if !ok {
		priority = models.PriorityNormal
	}
	level := d.EscalationLevel
	if level < models.LevelDistrict {
		level = models.LevelDistrict
	}

	r := models.Report{
		ID:              d.ID.Hex(),
		Title:           d.Title,
		Description:     d.Description,
		Category:        d.Category,
		Department:      models.ParseDepartment(d.Department),
		Priority:        priority,
		Status:          status,
		Notes:           d.Notes,
		LocationText:    d.LocationText,
		Landmark:        d.Landmark,
		Images:          d.Images,
		UserID:          d.UserID,
		ReporterName:    d.ReporterName,
		ReporterEmail:   d.ReporterEmail,
		Upvotes:         d.Upvotes,
		CoReporters:     d.CoReporters,
		EscalationLevel: level,
		IsCoolOffPeriod: d.IsCoolOffPeriod,
		ReminderCount:   d.ReminderCount,
	}
	if r.CoReporters == nil {
		r.CoReporters = []string{}
	}

	r.CreatedAt, _ = timeFromRaw(d.CreatedAt)
	r.UpdatedAt, _ = timeFromRaw(d.UpdatedAt)
	r.LastActionDate, ok = timeFromRaw(d.LastActionDate)
	if !ok {
		r.LastActionDate = r.CreatedAt
	}
	if d.LastActionDate.Type != bsontype.DateTime {
		r.LastActionRaw = d.LastActionDate
	}
	if t, ok := timeFromRaw(d.LastReminderAt); ok {
		r.LastReminderAt = &t
	}

	r.EscalationHistory = make([]models.EscalationEntry, 0, len(d.EscalationHistory))
	for _, h := range d.EscalationHistory {
		date, _ := timeFromRaw(h.Date)
		r.EscalationHistory = append(r.EscalationHistory, models.EscalationEntry{Date: date, Note: h.Note})
	}
	return r
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
}

// timeFromRaw normalises the stored timestamp representations to UTC.
func timeFromRaw(v bson.RawValue) (time.Time, bool) {
	switch v.Type {
	case bsontype.DateTime:
		return v.Time().UTC(), true
	case bsontype.Timestamp:
		sec, _ := v.Timestamp()
		return time.Unix(int64(sec), 0).UTC(), true
	case bsontype.Int64:
		return time.UnixMilli(v.Int64()).UTC(), true
	case bsontype.Double:
		sec := v.Double()
		return time.Unix(0, int64(sec*float64(time.Second))).UTC(), true
	case bsontype.String:
		s := v.StringValue()
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), true
			}
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC(), true
		}
	}
	return time.Time{}, false
}
