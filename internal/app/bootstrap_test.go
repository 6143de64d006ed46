package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/weaviate/entities/models"
)

// flakySchemaClient fails the existence check a fixed number of times before
// reporting a complete schema.
type flakySchemaClient struct {
	failures int
	calls    int
}

func (c *flakySchemaClient) ClassExists(ctx context.Context, className string) (bool, error) {
	c.calls++
	if c.calls <= c.failures {
		return false, errors.New("connection refused")
	}
	return true, nil
}

func (c *flakySchemaClient) CreateClass(ctx context.Context, class *models.Class) error {
	return nil
}

func (c *flakySchemaClient) GetClass(ctx context.Context, className string) (*models.Class, error) {
	return &models.Class{
		Class: "ContentChunk",
		Properties: []*models.Property{
			{Name: "vectorId"}, {Name: "text"}, {Name: "title"},
			{Name: "contentId"}, {Name: "chunkIndex"}, {Name: "contentKind"},
			{Name: "mediaUrl"}, {Name: "ownerId"}, {Name: "tags"}, {Name: "createdAt"},
		},
	}, nil
}

func (c *flakySchemaClient) AddProperty(ctx context.Context, className string, property *models.Property) error {
	return nil
}

func TestPingWithRetry_RecoversFromTransientFailures(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	mock.ExpectPing()

	err = pingWithRetry(db, 5, time.Millisecond)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPingWithRetry_GivesUpAfterAttempts(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	// Exactly three pings for three attempts, no fourth after the last
	// failure.
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	err = pingWithRetry(db, 3, time.Millisecond)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchemaWithRetry_RecoversFromTransientFailures(t *testing.T) {
	client := &flakySchemaClient{failures: 2}

	err := EnsureSchemaWithRetry(context.Background(), client, 5, time.Millisecond)

	require.NoError(t, err)
	assert.Equal(t, 3, client.calls)
}

func TestEnsureSchemaWithRetry_GivesUpAfterAttempts(t *testing.T) {
	client := &flakySchemaClient{failures: 100}

	err := EnsureSchemaWithRetry(context.Background(), client, 3, time.Millisecond)

	require.Error(t, err)
	assert.Equal(t, 3, client.calls)
}
