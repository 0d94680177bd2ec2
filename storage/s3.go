package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"copypatrol/config"
	"copypatrol/models"
)

// NewS3Client erstellt einen S3-Client für das konfigurierte Report-Archiv.
func NewS3Client(cfg *config.Config) (*s3.Client, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(
		func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:               cfg.ArchiveS3URL,
				SigningRegion:     cfg.ArchiveS3Region,
				HostnameImmutable: true,
			}, nil
		},
	)
	awsCfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithRegion(cfg.ArchiveS3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.ArchiveS3Key, cfg.ArchiveS3Secret, "")),
		awsconfig.WithEndpointResolverWithOptions(resolver),
	)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(awsCfg), nil
}

// ReportArchive legt die Roh-Reports bestätigter Fälle in einem
// S3-kompatiblen Bucket ab, damit die Beweislage einen späteren
// Datenbank-Cleanup überlebt.
type ReportArchive struct {
	Client *s3.Client
	Bucket string
	Logger *zap.Logger
}

// NewReportArchive erstellt das Archiv über dem S3-Client.
func NewReportArchive(client *s3.Client, bucket string, logger *zap.Logger) *ReportArchive {
	return &ReportArchive{Client: client, Bucket: bucket, Logger: logger}
}

// ArchiveReport schreibt den Report-Blob des Records ins Archiv. Der Key ist
// deterministisch, ein erneuter Upload desselben Records überschreibt nur.
func (a *ReportArchive) ArchiveReport(ctx context.Context, record *models.Record) error {
	if record.Report == "" {
		return nil
	}

	key := fmt.Sprintf("reports/%s/%d.txt", record.Lang, record.ID)
	_, err := a.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.Bucket),
		Key:    aws.String(key),
		Body:   strings.NewReader(record.Report),
	})
	if err != nil {
		return fmt.Errorf("report-upload nach s3://%s/%s fehlgeschlagen: %w", a.Bucket, key, err)
	}

	a.Logger.Debug("Report archiviert",
		zap.Int64("id", record.ID), zap.String("key", key))
	return nil
}
