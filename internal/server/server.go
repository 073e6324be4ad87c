// Package server implements the gRPC EntityStore service over the attribute
// index and the query executor
package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/nainya/entitystore/internal/logger"
	"github.com/nainya/entitystore/pkg/attrindex"
	"github.com/nainya/entitystore/pkg/query"
	"github.com/nainya/entitystore/pkg/storage"
	"github.com/nainya/entitystore/pkg/value"
)

// Version is reported by Health
const Version = "1.0.0"

// Server implements EntityStoreServer
type Server struct {
	index    *attrindex.Index
	executor *query.Executor
	indexKey string
	log      *logger.Logger

	loaded    atomic.Bool
	startTime time.Time

	mu       sync.Mutex
	opCounts map[string]int64
}

// NewServer serves ix and exec. indexKey is the storage key used by Save and
// Load when a request names none.
func NewServer(ix *attrindex.Index, exec *query.Executor, indexKey string, log *logger.Logger) *Server {
	if exec == nil {
		exec = query.NewExecutor()
	}
	if indexKey == "" {
		indexKey = attrindex.DefaultKey
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Server{
		index:     ix,
		executor:  exec,
		indexKey:  indexKey,
		log:       log.Component("server"),
		startTime: time.Now(),
		opCounts:  make(map[string]int64),
	}
}

// Ready reports whether the index has been loaded from storage
func (s *Server) Ready() bool {
	return s.loaded.Load()
}

// MarkReady flags the index as loaded without going through Load
func (s *Server) MarkReady() {
	s.loaded.Store(true)
}

// LoadIndex restores the index from storage at startup
func (s *Server) LoadIndex(ctx context.Context) error {
	if err := s.index.Load(ctx, s.indexKey); err != nil {
		return err
	}
	s.loaded.Store(true)
	s.log.Info("index loaded").
		Str("key", s.indexKey).
		Int("entities", s.index.Statistics().TotalEntities).
		Send()
	return nil
}

// SaveIndex persists the index under the configured key
func (s *Server) SaveIndex(ctx context.Context) error {
	if err := s.index.Save(ctx, s.indexKey); err != nil {
		return err
	}
	s.log.Info("index saved").Str("key", s.indexKey).Send()
	return nil
}

func (s *Server) count(op string) {
	s.mu.Lock()
	s.opCounts[op]++
	s.mu.Unlock()
}

// ========== Request helpers ==========

// toStatus maps package errors onto gRPC codes
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	code := codes.Internal
	switch {
	case errors.Is(err, attrindex.ErrInvalidArgument),
		errors.Is(err, attrindex.ErrInvalidOperator),
		errors.Is(err, attrindex.ErrInvalidCombinator),
		errors.Is(err, attrindex.ErrMissingField),
		errors.Is(err, query.ErrInvalidQuery):
		code = codes.InvalidArgument
	case errors.Is(err, attrindex.ErrInvalidDataStructure):
		code = codes.DataLoss
	case errors.Is(err, storage.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	}
	return status.Error(code, err.Error())
}

func stringField(req *structpb.Struct, name string) string {
	return req.GetFields()[name].GetStringValue()
}

func requireString(req *structpb.Struct, name string) (string, error) {
	v := stringField(req, name)
	if v == "" {
		return "", status.Errorf(codes.InvalidArgument, "%s is required", name)
	}
	return v, nil
}

// valueField decodes an optional value field. ok is false when the field is
// absent; an explicit null decodes to value.Null.
func valueField(req *structpb.Struct, name string) (value.Value, bool, error) {
	pv, ok := req.GetFields()[name]
	if !ok {
		return nil, false, nil
	}
	v, err := value.FromProto(pv)
	if err != nil {
		return nil, false, status.Errorf(codes.InvalidArgument, "%s: %v", name, err)
	}
	return v, true, nil
}

func idList(ids []string) *structpb.Value {
	values := make([]*structpb.Value, len(ids))
	for i, id := range ids {
		values[i] = structpb.NewStringValue(id)
	}
	return structpb.NewListValue(&structpb.ListValue{Values: values})
}

func idsResponse(ids []string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"entityIds": idList(ids),
		"count":     structpb.NewNumberValue(float64(len(ids))),
	}}
}

func okResponse() *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"success": structpb.NewBoolValue(true),
	}}
}

// ========== Index Operations ==========

func (s *Server) AddAttribute(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	s.count(MethodAddAttribute)

	entityID, err := requireString(req, "entityId")
	if err != nil {
		return nil, err
	}
	attribute, err := requireString(req, "attribute")
	if err != nil {
		return nil, err
	}
	v, ok, err := valueField(req, "value")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "value is required")
	}

	if err := s.index.AddAttribute(entityID, attribute, v); err != nil {
		return nil, toStatus(err)
	}
	return okResponse(), nil
}

func (s *Server) RemoveAttribute(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	s.count(MethodRemoveAttribute)

	entityID, err := requireString(req, "entityId")
	if err != nil {
		return nil, err
	}
	attribute, err := requireString(req, "attribute")
	if err != nil {
		return nil, err
	}

	if err := s.index.RemoveAttribute(entityID, attribute); err != nil {
		return nil, toStatus(err)
	}
	return okResponse(), nil
}

func (s *Server) RemoveEntity(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	s.count(MethodRemoveEntity)

	entityID, err := requireString(req, "entityId")
	if err != nil {
		return nil, err
	}
	if err := s.index.RemoveEntity(entityID); err != nil {
		return nil, toStatus(err)
	}
	return okResponse(), nil
}

// FindByAttribute matches attribute = value, or any value when the request
// carries no value field
func (s *Server) FindByAttribute(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	s.count(MethodFindByAttribute)

	attribute, err := requireString(req, "attribute")
	if err != nil {
		return nil, err
	}
	v, ok, err := valueField(req, "value")
	if err != nil {
		return nil, err
	}

	var ids []string
	if ok {
		ids, err = s.index.FindByAttribute(attribute, v)
	} else {
		ids, err = s.index.FindByAttributeExists(attribute)
	}
	if err != nil {
		return nil, toStatus(err)
	}
	return idsResponse(ids), nil
}

// FindByAttributes evaluates {conditions: [{attribute, operator, value}], combinator}
func (s *Server) FindByAttributes(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	s.count(MethodFindByAttributes)

	comb, err := attrindex.ParseCombinator(stringField(req, "combinator"))
	if err != nil {
		return nil, toStatus(err)
	}

	raw := req.GetFields()["conditions"].GetListValue().GetValues()
	conds := make([]attrindex.Condition, 0, len(raw))
	for i, item := range raw {
		cs := item.GetStructValue()
		if cs == nil {
			return nil, status.Errorf(codes.InvalidArgument, "conditions[%d] must be an object", i)
		}
		v, _, err := valueField(cs, "value")
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "conditions[%d]: %v", i, err)
		}
		conds = append(conds, attrindex.Condition{
			Attribute: stringField(cs, "attribute"),
			Operator:  attrindex.Operator(stringField(cs, "operator")),
			Value:     v,
		})
	}

	ids, err := s.index.FindByAttributes(conds, comb)
	if err != nil {
		return nil, toStatus(err)
	}
	return idsResponse(ids), nil
}

// Attributes returns every attribute recorded for {entityId}
func (s *Server) Attributes(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	s.count(MethodAttributes)

	entityID, err := requireString(req, "entityId")
	if err != nil {
		return nil, err
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"entityId":   structpb.NewStringValue(entityID),
		"exists":     structpb.NewBoolValue(s.index.HasEntity(entityID)),
		"attributes": structpb.NewStructValue(value.ToProtoStruct(s.index.Attributes(entityID))),
	}}, nil
}

func (s *Server) Statistics(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	s.count(MethodStatistics)

	st := s.index.Statistics()
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"totalEntities":          structpb.NewNumberValue(float64(st.TotalEntities)),
		"totalAttributes":        structpb.NewNumberValue(float64(st.TotalAttributes)),
		"totalAssociations":      structpb.NewNumberValue(float64(st.TotalAssociations)),
		"avgAttributesPerEntity": structpb.NewNumberValue(st.AvgAttributesPerEntity),
	}}, nil
}

// ========== Persistence ==========

func (s *Server) keyFor(req *structpb.Struct) string {
	if key := stringField(req, "key"); key != "" {
		return key
	}
	return s.indexKey
}

func (s *Server) Save(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	s.count(MethodSave)

	key := s.keyFor(req)
	if err := s.index.Save(ctx, key); err != nil {
		return nil, toStatus(err)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"success": structpb.NewBoolValue(true),
		"key":     structpb.NewStringValue(key),
	}}, nil
}

func (s *Server) Load(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	s.count(MethodLoad)

	key := s.keyFor(req)
	if err := s.index.Load(ctx, key); err != nil {
		return nil, toStatus(err)
	}
	s.loaded.Store(true)

	st := s.index.Statistics()
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"success":       structpb.NewBoolValue(true),
		"key":           structpb.NewStringValue(key),
		"totalEntities": structpb.NewNumberValue(float64(st.TotalEntities)),
	}}, nil
}

// ========== Query ==========

// Query runs {query: <spec>} over {records: [...]}
func (s *Server) Query(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	s.count(MethodQuery)

	var spec query.Spec
	if qs := req.GetFields()["query"].GetStructValue(); qs != nil {
		data, err := protojson.Marshal(qs)
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "query: %v", err)
		}
		if spec, err = query.ParseSpec(data); err != nil {
			return nil, toStatus(err)
		}
	}
	d, err := spec.Build()
	if err != nil {
		return nil, toStatus(err)
	}

	raw := req.GetFields()["records"].GetListValue().GetValues()
	records := make([]value.Map, 0, len(raw))
	for i, item := range raw {
		rs := item.GetStructValue()
		if rs == nil {
			return nil, status.Errorf(codes.InvalidArgument, "records[%d] must be an object", i)
		}
		m, err := value.FromProtoStruct(rs)
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "records[%d]: %v", i, err)
		}
		records = append(records, m)
	}

	res := s.executor.Execute(d, records)

	rows := make([]*structpb.Value, len(res.Records))
	for i, r := range res.Records {
		rows[i] = structpb.NewStructValue(value.ToProtoStruct(r))
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"records": structpb.NewListValue(&structpb.ListValue{Values: rows}),
		"total":   structpb.NewNumberValue(float64(res.Total)),
		"hasMore": structpb.NewBoolValue(res.HasMore),
		"grouped": structpb.NewBoolValue(res.Grouped),
	}}, nil
}

// ========== Health & Status ==========

func (s *Server) Health(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	s.mu.Lock()
	ops := make(map[string]any, len(s.opCounts))
	for op, n := range s.opCounts {
		ops[op] = float64(n)
	}
	s.mu.Unlock()

	operations, err := structpb.NewStruct(ops)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode operation counts: %v", err))
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"healthy":       structpb.NewBoolValue(true),
		"ready":         structpb.NewBoolValue(s.Ready()),
		"version":       structpb.NewStringValue(Version),
		"uptimeSeconds": structpb.NewNumberValue(float64(int64(time.Since(s.startTime).Seconds()))),
		"operations":    structpb.NewStructValue(operations),
	}}, nil
}
