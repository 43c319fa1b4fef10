package archive

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/C4erries/edumax/config"
)

// Uploader 归档对象存储
type Uploader interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
}

// S3Store 基于 S3 兼容存储（AWS S3 / MinIO）的归档实现，单 bucket
type S3Store struct {
	client *s3.Client
	bucket string
}

// NewS3Store 根据配置创建 S3 客户端
// 未配置 access key 时走默认凭证链（环境变量、实例角色等）
func NewS3Store(ctx context.Context, cfg *config.ArchiveConfig) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("archive.bucket 不能为空")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("加载 AWS 配置失败: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &S3Store{client: client, bucket: cfg.Bucket}, nil
}

// Put 上传对象；同名对象已存在时跳过（同一 seq 范围的日志内容不变）
func (s *S3Store) Put(ctx context.Context, key string, body []byte, contentType string) error {
	if _, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &s.bucket, Key: &key}); err == nil {
		return nil
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &s.bucket,
		Key:           &key,
		Body:          bytes.NewReader(body),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		return fmt.Errorf("上传归档对象失败: %w", err)
	}
	return nil
}

// ObjectKey 归档对象路径：<prefix>/<yyyy>/<mm>/<dd>/<first>-<last>.jsonl（UTC 日期）
func ObjectKey(prefix string, at time.Time, firstSeq, lastSeq int64) string {
	at = at.UTC()
	return path.Join(
		prefix,
		at.Format("2006"), at.Format("01"), at.Format("02"),
		fmt.Sprintf("%012d-%012d.jsonl", firstSeq, lastSeq),
	)
}
