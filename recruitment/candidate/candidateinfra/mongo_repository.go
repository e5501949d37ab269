package candidateinfra

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/Abraxas-365/applyflow/pkg/kernel"
	"github.com/Abraxas-365/applyflow/pkg/logx"
	"github.com/Abraxas-365/applyflow/recruitment/candidate"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoRepository stores candidate records in a MongoDB-compatible
// collection (MongoDB or Cosmos DB for MongoDB).
type MongoRepository struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// ConnectMongo dials uri and returns a repository bound to database/collection.
func ConnectMongo(ctx context.Context, uri, database, collection string) (*MongoRepository, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetRetryWrites(false).
		SetServerSelectionTimeout(15 * time.Second).
		SetConnectTimeout(15 * time.Second)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, candidate.ErrRegistry.NewWithCause(candidate.CodeStoreUnavailable, err)
	}
	return NewMongoRepository(client, client.Database(database).Collection(collection)), nil
}

func NewMongoRepository(client *mongo.Client, coll *mongo.Collection) *MongoRepository {
	return &MongoRepository{client: client, coll: coll}
}

var _ candidate.Repository = (*MongoRepository)(nil)

// EnsureIndexes creates the name indexes used by search. Failures are
// logged: Cosmos rejects some index definitions on populated collections.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "first_name", Value: 1}}},
		{Keys: bson.D{{Key: "last_name", Value: 1}}},
		{Keys: bson.D{{Key: "first_name", Value: 1}, {Key: "last_name", Value: 1}}},
		{Keys: bson.D{{Key: "application_id", Value: 1}}, Options: options.Index().SetSparse(true)},
	}
	for _, m := range models {
		if _, err := r.coll.Indexes().CreateOne(ctx, m); err != nil {
			logx.Warnf("Index %v not created: %v", m.Keys, err)
		}
	}
}

func keyFilter(k candidate.Key) bson.M {
	if k.ByApplicationID() {
		return bson.M{"application_id": k.ApplicationID.String()}
	}
	return bson.M{"first_name": k.FirstName, "last_name": k.LastName}
}

// setDocument renders the record as a $set payload. _id is immutable and
// never part of it.
func setDocument(c *candidate.Candidate) (bson.M, error) {
	raw, err := bson.Marshal(c)
	if err != nil {
		return nil, err
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	delete(doc, "_id")
	return doc, nil
}

func idString(v any) kernel.CandidateID {
	switch id := v.(type) {
	case primitive.ObjectID:
		return kernel.CandidateID(id.Hex())
	case string:
		return kernel.CandidateID(id)
	default:
		return kernel.CandidateID(fmt.Sprint(id))
	}
}

func idFilter(id kernel.CandidateID) bson.M {
	if oid, err := primitive.ObjectIDFromHex(id.String()); err == nil {
		return bson.M{"_id": oid}
	}
	return bson.M{"_id": id.String()}
}

// Upsert replaces the matching record or inserts a new one.
func (r *MongoRepository) Upsert(ctx context.Context, c *candidate.Candidate, applicationID kernel.ApplicationID) (kernel.CandidateID, error) {
	if !applicationID.IsEmpty() {
		c.ApplicationID = applicationID
	}
	c.Touch()

	filter := keyFilter(c.Key())
	set, err := setDocument(c)
	if err != nil {
		return "", candidate.ErrRegistry.NewWithCause(candidate.CodeStoreFailed, err).WithDetail("op", "encode")
	}

	res, err := r.coll.UpdateOne(ctx, filter, bson.M{"$set": set}, options.Update().SetUpsert(true))
	if err != nil {
		return "", classify(err, "upsert")
	}
	if res.UpsertedID != nil {
		c.ID = idString(res.UpsertedID)
		return c.ID, nil
	}

	var found struct {
		ID any `bson:"_id"`
	}
	err = r.coll.FindOne(ctx, filter, options.FindOne().SetProjection(bson.M{"_id": 1})).Decode(&found)
	if err != nil {
		return "", classify(err, "upsert_lookup")
	}
	c.ID = idString(found.ID)
	return c.ID, nil
}

func (r *MongoRepository) findOne(ctx context.Context, filter bson.M) (*candidate.Candidate, error) {
	var c candidate.Candidate
	err := r.coll.FindOne(ctx, filter).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, candidate.ErrCandidateNotFound()
	}
	if err != nil {
		return nil, classify(err, "find_one")
	}
	return &c, nil
}

func (r *MongoRepository) GetByID(ctx context.Context, id kernel.CandidateID) (*candidate.Candidate, error) {
	c, err := r.findOne(ctx, idFilter(id))
	if candidate.IsNotFound(err) {
		return nil, candidate.ErrCandidateNotFound().WithDetail("id", id.String())
	}
	return c, err
}

func (r *MongoRepository) FindByApplicationID(ctx context.Context, id kernel.ApplicationID) (*candidate.Candidate, error) {
	c, err := r.findOne(ctx, bson.M{"application_id": id.String()})
	if candidate.IsNotFound(err) {
		return nil, candidate.ErrCandidateNotFound().WithDetail("application_id", id.String())
	}
	return c, err
}

func (r *MongoRepository) ExistsByApplicationID(ctx context.Context, id kernel.ApplicationID) (bool, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{"application_id": id.String()}, options.Count().SetLimit(1))
	if err != nil {
		return false, classify(err, "exists")
	}
	return n > 0, nil
}

// InsertRaw inserts doc unchanged. Duplicate keys surface as ErrDuplicateKey.
func (r *MongoRepository) InsertRaw(ctx context.Context, doc map[string]any) error {
	_, err := r.coll.InsertOne(ctx, bson.M(doc))
	return classify(err, "insert")
}

func (r *MongoRepository) Count(ctx context.Context) (int64, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, classify(err, "count")
	}
	return n, nil
}

func (r *MongoRepository) find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]candidate.Candidate, error) {
	cur, err := r.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	out := []candidate.Candidate{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *MongoRepository) List(ctx context.Context) ([]candidate.Candidate, error) {
	out, err := r.find(ctx, bson.M{})
	if err != nil {
		return nil, classify(err, "list")
	}
	return out, nil
}

// Search matches names with a case-insensitive, regex-escaped substring.
func (r *MongoRepository) Search(ctx context.Context, req candidate.SearchCandidatesRequest) ([]candidate.Candidate, error) {
	req = req.Normalize()
	if req.IsEmpty() {
		return nil, candidate.ErrSearchCriteriaRequired()
	}

	filter := bson.M{}
	if req.FirstName != "" {
		filter["first_name"] = primitive.Regex{Pattern: regexp.QuoteMeta(req.FirstName), Options: "i"}
	}
	if req.LastName != "" {
		filter["last_name"] = primitive.Regex{Pattern: regexp.QuoteMeta(req.LastName), Options: "i"}
	}

	out, err := r.find(ctx, filter)
	if err != nil {
		return nil, candidate.ErrRegistry.NewWithCause(candidate.CodeSearchFailed, err)
	}
	return out, nil
}

func (r *MongoRepository) Sample(ctx context.Context, limit int) ([]candidate.Candidate, error) {
	out, err := r.find(ctx, bson.M{}, options.Find().SetLimit(int64(limit)))
	if err != nil {
		return nil, classify(err, "sample")
	}
	return out, nil
}

func (r *MongoRepository) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx, readpref.Primary()); err != nil {
		return candidate.ErrRegistry.NewWithCause(candidate.CodeStoreUnavailable, err)
	}
	return nil
}

func (r *MongoRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}
