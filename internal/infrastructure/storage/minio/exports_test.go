package minio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/turtacn/Revenue-Intelligence/pkg/errors"
)

func newTestExportStore(prefix string) (*ExportStore, *MockMinIOAPI) {
	api := new(MockMinIOAPI)
	client := NewMinIOClientWithAPI(api, &MinIOConfig{Prefix: prefix}, nil)
	return NewExportStore(client, nil), api
}

func TestExportStore_SaveExport(t *testing.T) {
	store, api := newTestExportStore("exports")
	ctx := context.Background()
	body := `{"summary":{}}`

	api.On("PutObject", ctx, "revintel-exports", "exports/2024/05/01/batch-1.json", body, int64(len(body)),
		mock.MatchedBy(func(o minio.PutObjectOptions) bool { return o.ContentType == "application/json" })).
		Return(minio.UploadInfo{Size: int64(len(body))}, nil).Once()

	loc, err := store.SaveExport(ctx, "2024/05/01/batch-1.json", []byte(body))

	require.NoError(t, err)
	assert.Equal(t, "revintel-exports/exports/2024/05/01/batch-1.json", loc)
	api.AssertExpectations(t)
}

func TestExportStore_SaveExport_Errors(t *testing.T) {
	store, api := newTestExportStore("")
	ctx := context.Background()

	_, err := store.SaveExport(ctx, "", []byte("x"))
	assert.Equal(t, ErrInvalidRequest, err)
	_, err = store.SaveExport(ctx, "a.json", nil)
	assert.Equal(t, ErrInvalidRequest, err)

	api.On("PutObject", ctx, "revintel-exports", "a.json", "x", int64(1), mock.Anything).
		Return(minio.UploadInfo{}, errors.New("disk full")).Once()
	_, err = store.SaveExport(ctx, "a.json", []byte("x"))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeStorage))

	require.NoError(t, store.client.Close())
	_, err = store.SaveExport(ctx, "a.json", []byte("x"))
	assert.Equal(t, ErrMinIOClientClosed, err)
	api.AssertExpectations(t)
}

func TestExportStore_Stat(t *testing.T) {
	store, api := newTestExportStore("exports")
	ctx := context.Background()
	mod := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	api.On("StatObject", ctx, "revintel-exports", "exports/a.json", minio.StatObjectOptions{}).
		Return(minio.ObjectInfo{Size: 12, ContentType: "application/json", LastModified: mod}, nil).Once()
	api.On("StatObject", ctx, "revintel-exports", "exports/missing.json", minio.StatObjectOptions{}).
		Return(minio.ObjectInfo{}, minio.ErrorResponse{Code: "NoSuchKey"}).Once()

	meta, err := store.Stat(ctx, "a.json")
	require.NoError(t, err)
	assert.Equal(t, int64(12), meta.Size)
	assert.Equal(t, mod, meta.LastModified)

	_, err = store.Stat(ctx, "missing.json")
	assert.Equal(t, ErrObjectNotFound, err)
}

func TestExportStore_List(t *testing.T) {
	store, api := newTestExportStore("exports")
	ctx := context.Background()

	api.On("ListObjects", ctx, "revintel-exports", minio.ListObjectsOptions{Prefix: "exports/", Recursive: true}).
		Return(objectChan(
			minio.ObjectInfo{Key: "exports/2024/05/01/a.json", Size: 10},
			minio.ObjectInfo{Key: "exports/2024/05/01/b.json", Size: 20},
			minio.ObjectInfo{Key: "exports/2024/05/02/c.json", Size: 30},
		)).Once()

	objs, err := store.List(ctx, "", 2)
	require.NoError(t, err)
	require.Len(t, objs, 2)
	assert.Equal(t, "exports/2024/05/01/b.json", objs[1].ObjectKey)

	api.On("ListObjects", ctx, "revintel-exports", minio.ListObjectsOptions{Prefix: "exports/2024", Recursive: true}).
		Return(objectChan(minio.ObjectInfo{Err: errors.New("timeout")})).Once()
	_, err = store.List(ctx, "2024", 0)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeStorage))
}

func TestExportStore_Delete(t *testing.T) {
	store, api := newTestExportStore("exports")
	ctx := context.Background()

	api.On("RemoveObject", ctx, "revintel-exports", "exports/a.json", minio.RemoveObjectOptions{}).Return(nil).Once()
	api.On("RemoveObject", ctx, "revintel-exports", "exports/b.json", minio.RemoveObjectOptions{}).Return(errors.New("denied")).Once()

	assert.NoError(t, store.Delete(ctx, "a.json"))
	assert.Error(t, store.Delete(ctx, "b.json"))
}
