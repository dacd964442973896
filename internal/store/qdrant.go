package store

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// payloadIDField stashes the caller's original string id in the point
// payload when that id is not itself a valid UUID, since Qdrant point ids
// must be a u64 or a UUID.
const payloadIDField = "_original_id"

// QdrantVector is a VectorStore backed by Qdrant.
type QdrantVector struct {
	client *qdrant.Client
}

// NewQdrantVector dials a Qdrant instance over gRPC. dsn is a URL of the form
// scheme://[api-key@]host[:port]; the port defaults to 6334 and a "qdrants"
// or "https" scheme enables TLS.
func NewQdrantVector(dsn string) (*QdrantVector, error) {
	host, port, useTLS, apiKey, err := parseQdrantDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse qdrant dsn: %w", err)
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		UseTLS: useTLS,
		APIKey: apiKey,
	})
	if err != nil {
		return nil, &ConnectionError{Backend: "qdrant", Cause: err}
	}
	return &QdrantVector{client: client}, nil
}

func parseQdrantDSN(dsn string) (host string, port int, useTLS bool, apiKey string, err error) {
	u, perr := url.Parse(dsn)
	if perr != nil || u.Host == "" {
		return "", 0, false, "", fmt.Errorf("invalid qdrant dsn %q", dsn)
	}
	host = u.Hostname()
	p := u.Port()
	if p == "" {
		port = 6334
	} else {
		port, err = strconv.Atoi(p)
		if err != nil {
			return "", 0, false, "", err
		}
	}
	useTLS = u.Scheme == "qdrants" || u.Scheme == "https"
	if pw, ok := u.User.Password(); ok {
		apiKey = pw
	} else if u.User.Username() != "" {
		apiKey = u.User.Username()
	}
	return host, port, useTLS, apiKey, nil
}

// pointID derives a Qdrant point id from a caller-supplied string id. If the
// id is already a valid UUID it is used as-is; otherwise a deterministic
// UUIDv5 is derived so repeated calls with the same string always resolve
// to the same point.
func pointID(id string) (*qdrant.PointId, bool) {
	if _, err := uuid.Parse(id); err == nil {
		return qdrant.NewID(id), false
	}
	derived := uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String()
	return qdrant.NewID(derived), true
}

func distanceOf(name string) qdrant.Distance {
	switch strings.ToLower(name) {
	case "euclid", "l2":
		return qdrant.Distance_Euclid
	case "dot":
		return qdrant.Distance_Dot
	default:
		return qdrant.Distance_Cosine
	}
}

// EnsureCollection creates the collection if it does not already exist.
func (q *QdrantVector) EnsureCollection(ctx context.Context, collection string, dimensions int, distance string) error {
	exists, err := q.client.CollectionExists(ctx, collection)
	if err != nil {
		return classifyQdrantErr(err)
	}
	if exists {
		return nil
	}
	return q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimensions),
			Distance: distanceOf(distance),
		}),
	})
}

func (q *QdrantVector) Upsert(ctx context.Context, collection string, points []VectorPoint) error {
	upsertPoints := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		id, derived := pointID(p.ID)
		payload := make(map[string]any, len(p.Payload)+1)
		for k, v := range p.Payload {
			payload[k] = v
		}
		if derived {
			payload[payloadIDField] = p.ID
		}
		upsertPoints = append(upsertPoints, &qdrant.PointStruct{
			Id:      id,
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: qdrant.NewValueMap(payload),
		})
	}
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         upsertPoints,
	})
	if err != nil {
		return classifyQdrantErr(err)
	}
	return nil
}

func (q *QdrantVector) BatchUpsert(ctx context.Context, collection string, points []VectorPoint, batchSize int) (BatchUpsertResult, error) {
	if batchSize <= 0 {
		batchSize = 100
	}
	var result BatchUpsertResult
	for start := 0; start < len(points); start += batchSize {
		end := start + batchSize
		if end > len(points) {
			end = len(points)
		}
		chunk := points[start:end]
		if err := q.Upsert(ctx, collection, chunk); err != nil {
			for i := range chunk {
				result.FailedIDs = append(result.FailedIDs, chunk[i].ID)
				result.FailedIndex = append(result.FailedIndex, start+i)
			}
			continue
		}
		result.Succeeded += len(chunk)
	}
	return result, nil
}

func (q *QdrantVector) Delete(ctx context.Context, collection string, id string) error {
	pid, _ := pointID(id)
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points:         qdrant.NewPointsSelector(pid),
	})
	if err != nil {
		return classifyQdrantErr(err)
	}
	return nil
}

func (q *QdrantVector) Get(ctx context.Context, collection string, id string) (*VectorPoint, error) {
	pid, _ := pointID(id)
	pts, err := q.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: collection,
		Ids:            []*qdrant.PointId{pid},
		WithVectors:    qdrant.NewWithVectors(true),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, classifyQdrantErr(err)
	}
	if len(pts) == 0 {
		return nil, nil
	}
	return toVectorPoint(id, pts[0].GetPayload(), pts[0].GetVectors()), nil
}

func (q *QdrantVector) Search(ctx context.Context, collection string, query []float32, limit int, filter *VectorFilter) ([]VectorMatch, error) {
	req := &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if filter != nil {
		req.Filter = toQdrantFilter(filter)
	}
	points, err := q.client.Query(ctx, req)
	if err != nil {
		return nil, classifyQdrantErr(err)
	}
	matches := make([]VectorMatch, 0, len(points))
	for _, p := range points {
		payload := fromValueMap(p.GetPayload())
		id := idFromPayload(p.GetId(), payload)
		matches = append(matches, VectorMatch{ID: id, Score: p.GetScore(), Payload: payload})
	}
	return matches, nil
}

func (q *QdrantVector) HealthCheck(ctx context.Context) Health {
	return timed(func() error {
		cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		_, err := q.client.HealthCheck(cctx)
		return err
	})
}

func toQdrantFilter(f *VectorFilter) *qdrant.Filter {
	var must []*qdrant.Condition
	for k, v := range f.Eq {
		must = append(must, qdrant.NewMatch(k, fmt.Sprintf("%v", v)))
	}
	for k, vals := range f.In {
		strs := make([]string, len(vals))
		for i, v := range vals {
			strs[i] = fmt.Sprintf("%v", v)
		}
		must = append(must, qdrant.NewMatchKeywords(k, strs...))
	}
	for k, r := range f.Range {
		rb := &qdrant.Range{}
		if r.Gte != nil {
			if f, ok := toFloat(r.Gte); ok {
				rb.Gte = &f
			}
		}
		if r.Lte != nil {
			if f, ok := toFloat(r.Lte); ok {
				rb.Lte = &f
			}
		}
		must = append(must, qdrant.NewRange(k, rb))
	}
	if len(must) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: must}
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	default:
		return 0, false
	}
}

func fromValueMap(m map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = qdrant.NewGoValue(v)
	}
	return out
}

func idFromPayload(id *qdrant.PointId, payload map[string]any) string {
	if orig, ok := payload[payloadIDField]; ok {
		if s, ok := orig.(string); ok {
			return s
		}
	}
	if id == nil {
		return ""
	}
	return id.String()
}

func toVectorPoint(id string, payload map[string]*qdrant.Value, vecs *qdrant.VectorsOutput) *VectorPoint {
	p := &VectorPoint{ID: id, Payload: fromValueMap(payload)}
	if vecs != nil {
		if v := vecs.GetVector(); v != nil {
			p.Vector = v.GetData()
		}
	}
	return p
}

func classifyQdrantErr(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "context deadline exceeded"), strings.Contains(msg, "DeadlineExceeded"):
		return &OperationTimeout{Backend: "qdrant", Operation: "call"}
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "Unavailable"), strings.Contains(msg, "no such host"):
		return &ConnectionError{Backend: "qdrant", Cause: err}
	case strings.Contains(msg, "InvalidArgument"), strings.Contains(msg, "already exists"), strings.Contains(msg, "not found"):
		return &QueryError{Backend: "qdrant", Cause: err}
	default:
		return &DatabaseError{Backend: "qdrant", Cause: err}
	}
}

var _ VectorStore = (*QdrantVector)(nil)
