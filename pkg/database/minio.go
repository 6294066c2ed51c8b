package database

import (
	"context"
	"fmt"
	"io"
	"log"
	"path"
	"strings"
	"time"

	errprocess "social_network_service/pkg/err"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// UploadObject 上傳的檔案內容
type UploadObject struct {
	Name        string
	Reader      io.Reader
	Size        int64
	ContentType string
}

// ObjectStorage 附件儲存
type ObjectStorage interface {
	// Upload 上傳到 dir 之下並回傳 object key
	Upload(ctx context.Context, dir string, obj UploadObject) (string, error)
	Delete(ctx context.Context, key string) error
}

// MinIOClient definition minio client
type MinIOClient struct {
	Client     *minio.Client
	BucketName string
	Prefix     string
}

// NewMinIOConnection create a new minio connection have retry
func NewMinIOConnection(d MinIOConnection) (*MinIOClient, error) {
	var mc *MinIOClient
	var err error

	for i := 1; i <= d.RetryCount; i++ {
		mc, err = NewMinioClient(d.Endpoint, d.User, d.Password, d.BucketName, d.UseSSL)
		if err == nil {
			mc.Prefix = d.Prefix
			log.Printf("minIO[%s] 連線成功 (嘗試 %d 次)", d.Endpoint, i)
			return mc, nil
		}

		log.Printf("minIO[%s] 連線失敗 (嘗試 %d/%d): %v", d.Endpoint, i, d.RetryCount, err)
		time.Sleep(d.RetryInterval * time.Second)
	}

	return mc, err
}

// NewMinioClient create a new minio
func NewMinioClient(endpoint, accessKey, secretKey, bucketName string, useSSL bool) (*MinIOClient, error) {
	minioClient, err := minio.New(endpoint,
		&minio.Options{
			Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
			Secure: useSSL,
		})
	if err != nil {
		return nil, fmt.Errorf("初始化 MinIO 失敗: %v", err)
	}

	ctx := context.Background()
	exists, err := minioClient.BucketExists(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("檢查 bucket [%s] 失敗: %v", bucketName, err)
	}

	if !exists {
		if err = minioClient.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("建立 bucket [%s] 失敗: %v", bucketName, err)
		}
		log.Printf("Bucket [%s] 建立成功", bucketName)
	} else {
		log.Printf("Bucket [%s] 已存在", bucketName)
	}

	return &MinIOClient{
		Client:     minioClient,
		BucketName: bucketName,
	}, nil
}

// ObjectKey {prefix}/{dir}/{uuid}_{name}
func ObjectKey(prefix, dir, name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" {
		name = "file"
	}
	return path.Join(prefix, dir, uuid.NewString()+"_"+name)
}

// Upload 上傳檔案，size 未知時傳 -1
func (m *MinIOClient) Upload(ctx context.Context, dir string, obj UploadObject) (string, error) {
	key := ObjectKey(m.Prefix, dir, obj.Name)
	size := obj.Size
	if size <= 0 {
		size = -1
	}

	_, err := m.Client.PutObject(ctx, m.BucketName, key, obj.Reader, size, minio.PutObjectOptions{
		ContentType: obj.ContentType,
	})
	if err != nil {
		return "", errprocess.Wrap(errprocess.TransientStore, "upload attachment", err)
	}
	return key, nil
}

// Delete 刪除 object，不存在時不報錯
func (m *MinIOClient) Delete(ctx context.Context, key string) error {
	if err := m.Client.RemoveObject(ctx, m.BucketName, key, minio.RemoveObjectOptions{}); err != nil {
		return errprocess.Wrap(errprocess.TransientStore, "delete attachment", err)
	}
	return nil
}
