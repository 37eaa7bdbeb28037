package storage

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ppiankov/certverify/internal/model"
)

// FirestoreRegistry stores certificate records in a Firestore collection,
// one document per record keyed by its ID
type FirestoreRegistry struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreRegistry connects to Firestore in the given project
func NewFirestoreRegistry(ctx context.Context, projectID, collection string) (*FirestoreRegistry, error) {
	if projectID == "" {
		return nil, fmt.Errorf("project ID is required for the firestore registry")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}

	return &FirestoreRegistry{
		client:     client,
		collection: collection,
	}, nil
}

// Save implements Registry
func (r *FirestoreRegistry) Save(ctx context.Context, record model.CertificateRecord) error {
	_, err := r.client.Collection(r.collection).Doc(record.ID).Create(ctx, record)
	if err != nil && status.Code(err) != codes.AlreadyExists {
		return fmt.Errorf("save certificate %s: %w", record.FileName, err)
	}
	return nil
}

// List implements Registry. Newest records come first.
func (r *FirestoreRegistry) List(ctx context.Context) ([]model.CertificateRecord, error) {
	docs, err := r.client.Collection(r.collection).OrderBy("createdAt", firestore.Desc).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("list certificates: %w", err)
	}

	records := make([]model.CertificateRecord, 0, len(docs))
	for _, doc := range docs {
		var rec model.CertificateRecord
		if err := doc.DataTo(&rec); err != nil {
			return nil, fmt.Errorf("decode certificate %s: %w", doc.Ref.ID, err)
		}
		if rec.ID == "" {
			rec.ID = doc.Ref.ID
		}
		records = append(records, rec)
	}
	return withTypes(records), nil
}

// Close releases the Firestore client
func (r *FirestoreRegistry) Close() error {
	return r.client.Close()
}
