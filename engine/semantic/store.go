// Package semantic is the sole owner of all Qdrant operations: collection
// lifecycle, chunk upserts, and filtered k-NN search over chunk embeddings.
package semantic

import (
	"context"
	"fmt"

	"github.com/DoorwiseAI/doorwise-mvp/engine/domain"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Payload keys stored alongside each point.
const (
	payloadText         = "text"
	payloadDocID        = "doc_id"
	payloadPosition     = "position"
	payloadDoorCategory = "door_category"
	payloadDoorType     = "door_type"
	payloadContentType  = "content_type"
)

// VectorStore wraps a Qdrant collection of door-manual chunks.
type VectorStore struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
}

// New creates a VectorStore connected to Qdrant at the given gRPC address.
func New(addr string, collection string) (*VectorStore, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	return &VectorStore{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}, nil
}

// Close closes the underlying gRPC connection.
func (v *VectorStore) Close() error {
	return v.conn.Close()
}

// EnsureCollection creates the collection if it doesn't exist. Cosine distance
// keeps the score-to-similarity mapping monotonic for fusion.
func (v *VectorStore) EnsureCollection(ctx context.Context, dims int) error {
	list, err := v.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("semantic: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == v.collection {
			return nil
		}
	}

	_, err = v.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: v.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: create collection %s: %w", v.collection, err)
	}
	return nil
}

// Upsert stores embedded chunks into Qdrant. Called by cmd/ingest.
func (v *VectorStore) Upsert(ctx context.Context, records []VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	points := make([]*pb.PointStruct, len(records))
	for i, r := range records {
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: r.Chunk.ID},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: r.Embedding},
				},
			},
			Payload: map[string]*pb.Value{
				payloadText:         stringValue(r.Chunk.Text),
				payloadDocID:        stringValue(r.Chunk.DocID),
				payloadPosition:     {Kind: &pb.Value_IntegerValue{IntegerValue: int64(r.Chunk.Position)}},
				payloadDoorCategory: stringValue(string(r.Chunk.Metadata.DoorCategory)),
				payloadDoorType:     stringValue(string(r.Chunk.Metadata.DoorType)),
				payloadContentType:  stringValue(string(r.Chunk.Metadata.ContentType)),
			},
		}
	}

	wait := true
	_, err := v.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: v.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("semantic: upsert %d points: %w", len(records), err)
	}
	return nil
}

// DeleteByDocID removes all points belonging to a document. Used for re-ingestion.
func (v *VectorStore) DeleteByDocID(ctx context.Context, docID string) error {
	wait := true
	_, err := v.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: v.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{
				Filter: &pb.Filter{
					Must: []*pb.Condition{
						fieldMatch(payloadDocID, docID),
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: delete by doc_id %s: %w", docID, err)
	}
	return nil
}

// Search performs filtered k-NN similarity search. Door metadata filters are
// pushed down to Qdrant so returned candidates are always filter-compliant.
func (v *VectorStore) Search(ctx context.Context, embedding []float32, topK int, filter domain.Filter) ([]SearchResult, error) {
	req := &pb.SearchPoints{
		CollectionName: v.collection,
		Vector:         embedding,
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	}

	if must := filterConditions(filter); len(must) > 0 {
		req.Filter = &pb.Filter{Must: must}
	}

	resp, err := v.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("semantic: search: %w", err)
	}

	results := make([]SearchResult, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		sr := SearchResult{
			ID:    r.GetId().GetUuid(),
			Score: r.GetScore(),
		}
		payload := r.GetPayload()
		sr.Text = payload[payloadText].GetStringValue()
		sr.DocID = payload[payloadDocID].GetStringValue()
		sr.Position = int(payload[payloadPosition].GetIntegerValue())
		sr.Metadata = domain.ChunkMetadata{
			DoorCategory: domain.DoorCategory(payload[payloadDoorCategory].GetStringValue()),
			DoorType:     domain.DoorType(payload[payloadDoorType].GetStringValue()),
			ContentType:  domain.ContentType(payload[payloadContentType].GetStringValue()),
		}
		results[i] = sr
	}
	return results, nil
}

func filterConditions(f domain.Filter) []*pb.Condition {
	var must []*pb.Condition
	if f.DoorCategory != "" && f.DoorCategory != domain.CategoryUnknown {
		must = append(must, fieldMatch(payloadDoorCategory, string(f.DoorCategory)))
	}
	if f.DoorType != "" && f.DoorType != domain.TypeUnknown {
		must = append(must, fieldMatch(payloadDoorType, string(f.DoorType)))
	}
	if f.ContentType != "" && f.ContentType != domain.ContentAny {
		must = append(must, fieldMatch(payloadContentType, string(f.ContentType)))
	}
	return must
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

func fieldMatch(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: key,
				Match: &pb.Match{
					MatchValue: &pb.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}
