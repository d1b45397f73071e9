package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/securevault/internal/common"
	sc "github.com/dmitrijs2005/securevault/internal/server/config"
	"github.com/dmitrijs2005/securevault/internal/server/models"
	"github.com/dmitrijs2005/securevault/internal/server/repositories/repomanager"
	"github.com/google/uuid"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ExportURLValidity is the lifetime of the presigned download link.
const ExportURLValidity = 15 * time.Minute

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in, optFns...)
	}

	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// ExportDocument is the uploaded backup. It holds only ciphertext and the
// salts and wrapped keys needed to open it with the master password.
type ExportDocument struct {
	Version           int            `json:"version"`
	UserName          string         `json:"username"`
	ExportedAt        time.Time      `json:"exportedAt"`
	Salt              string         `json:"salt"`
	EncryptedVaultKey string         `json:"encryptedVaultKey"`
	Vaults            []ExportVault  `json:"vaults"`
	Items             []ExportRecord `json:"items"`
}

type ExportVault struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Icon            string `json:"icon"`
	EncryptedSubKey string `json:"encryptedSubKey"`
	IV              string `json:"iv"`
}

type ExportRecord struct {
	ID            string    `json:"id"`
	VaultID       string    `json:"vaultId"`
	EncryptedData string    `json:"encryptedData"`
	IV            string    `json:"iv"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Export describes an uploaded backup.
type Export struct {
	Key       string
	URL       string
	ExpiresAt time.Time
	Vaults    int
	Items     int
}

// BackupService writes encrypted exports to S3-compatible storage.
type BackupService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	audit       *AuditService
	config      *sc.Config
	now         func() time.Time
}

func NewBackupService(db *sql.DB, m repomanager.RepositoryManager, audit *AuditService, cfg *sc.Config) *BackupService {
	return &BackupService{db: db, repomanager: m, audit: audit, config: cfg, now: time.Now}
}

// GetRandomStorageKey returns a date-partitioned object key.
func GetRandomStorageKey(d time.Time) string {
	return fmt.Sprintf("users/%d/%d/%d/%v.json", d.Year(), d.Month(), d.Day(), uuid.New())
}

func (s *BackupService) getS3Client(ctx context.Context) (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		o.UsePathStyle = true
	}), nil
}

// Export uploads the session user's vaults and items and returns a presigned
// download link.
func (s *BackupService) Export(ctx context.Context, sess *models.Session) (*Export, error) {
	doc, err := s.buildDocument(ctx, sess)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal export: %v", common.ErrorInternal, err)
	}

	client, err := s.getS3Client(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: s3 config: %v", common.ErrorUpstream, err)
	}

	bucket := s.config.S3Bucket
	key := GetRandomStorageKey(doc.ExportedAt)

	if _, err := putObject(client, ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	}); err != nil {
		return nil, fmt.Errorf("%w: upload export: %v", common.ErrorUpstream, err)
	}

	req, err := presignGetObject(newS3PresignClient(client), ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(ExportURLValidity))
	if err != nil {
		return nil, fmt.Errorf("%w: presign export: %v", common.ErrorUpstream, err)
	}

	if err := s.audit.Record(ctx, sess.UserName, EventVaultExported,
		map[string]any{"key": key, "vaults": len(doc.Vaults), "items": len(doc.Items)}); err != nil {
		return nil, err
	}

	return &Export{
		Key:       key,
		URL:       req.URL,
		ExpiresAt: doc.ExportedAt.Add(ExportURLValidity),
		Vaults:    len(doc.Vaults),
		Items:     len(doc.Items),
	}, nil
}

func (s *BackupService) buildDocument(ctx context.Context, sess *models.Session) (*ExportDocument, error) {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	vaults, err := s.repomanager.Vaults(s.db).ListByUser(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	items, err := s.repomanager.Items(s.db).ListByUser(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}

	doc := &ExportDocument{
		Version:           1,
		UserName:          user.UserName,
		ExportedAt:        s.now().UTC(),
		Salt:              user.Salt,
		EncryptedVaultKey: user.EncryptedVaultKey,
		Vaults:            make([]ExportVault, 0, len(vaults)),
		Items:             make([]ExportRecord, 0, len(items)),
	}
	for _, v := range vaults {
		doc.Vaults = append(doc.Vaults, ExportVault{
			ID: v.ID, Name: v.Name, Icon: v.Icon, EncryptedSubKey: v.EncryptedSubKey, IV: v.IV,
		})
	}
	for _, it := range items {
		doc.Items = append(doc.Items, ExportRecord{
			ID: it.ID, VaultID: it.VaultID, EncryptedData: it.EncryptedData, IV: it.IV, UpdatedAt: it.UpdatedAt,
		})
	}
	return doc, nil
}
